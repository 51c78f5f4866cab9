package board

// Ledger tracks, per user, the stack of opIds hidden by that user's own
// undos. Redo pops the most recent entry; other users' undo/redo activity
// never touches a user's stack. Like Log, it is guarded by the owning
// Room's mutex.
type Ledger struct {
	stacks map[string][]string
}

func NewLedger() *Ledger {
	return &Ledger{stacks: make(map[string][]string)}
}

// Init ensures a stack exists for userID.
func (l *Ledger) Init(userID string) {
	if _, ok := l.stacks[userID]; !ok {
		l.stacks[userID] = []string{}
	}
}

// RecordUndo pushes opID onto the user's stack. Called only after the log
// has flipped the operation to inactive.
func (l *Ledger) RecordUndo(userID, opID string) {
	l.stacks[userID] = append(l.stacks[userID], opID)
}

// PopRedo pops and returns the most recently undone opID for the user.
func (l *Ledger) PopRedo(userID string) (string, bool) {
	stack := l.stacks[userID]
	if len(stack) == 0 {
		return "", false
	}
	opID := stack[len(stack)-1]
	l.stacks[userID] = stack[:len(stack)-1]
	return opID, true
}
