package api

import (
	"net/http"

	"sketchroom/internal/gateway"
	"sketchroom/internal/middleware"

	"github.com/gorilla/mux"
)

// SetupRoutes builds the HTTP surface: the websocket endpoint, a health
// check and the static drawing client.
func SetupRoutes(ws *gateway.Handler, staticDir string) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	r.HandleFunc("/api/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/ws", ws.HandleConnection)

	// The drawing client: index.html at the root, assets beside it.
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}
