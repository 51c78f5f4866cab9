// Package board holds the in-memory collaboration state for drawing
// rooms: the append-only operation log, the per-user undo ledger, the
// room aggregate that serializes access to both, and the process-wide
// room directory.
package board

import "sketchroom/internal/models"

// Log is the append-only history for one room. Seq values are unique,
// strictly increasing and equal to slice position+1 at all times; entries
// are never removed, only flipped between active and inactive.
//
// Log is not safe for concurrent use. It is owned by a Room and every
// access goes through the Room's mutex.
type Log struct {
	seq int
	ops []models.Operation
}

// Append assigns the next sequence number to the draft, marks it active
// and stores it, returning a copy of the stored operation. It never
// fails; a resent opId is accepted as a second entry (idempotency is the
// client's concern, see FindByOpID).
func (l *Log) Append(draft models.StrokeDraft) models.Operation {
	l.seq++
	op := models.Operation{
		Seq:    l.seq,
		Type:   models.OpTypeStroke,
		OpID:   draft.OpID,
		UserID: draft.UserID,
		Color:  draft.Color,
		Width:  draft.Width,
		Tool:   draft.Tool,
		Points: draft.Points,
		Active: true,
	}
	l.ops = append(l.ops, op)
	return op
}

// FindLastActiveByUser scans from the newest entry backward and returns
// the first active operation authored by userID, or nil. The backward
// scan is the undo rule: undo targets the author's most recent
// still-visible stroke no matter how many strokes other users interleaved
// after it.
func (l *Log) FindLastActiveByUser(userID string) *models.Operation {
	for i := len(l.ops) - 1; i >= 0; i-- {
		if l.ops[i].UserID == userID && l.ops[i].Active {
			return &l.ops[i]
		}
	}
	return nil
}

// FindByOpID returns the first operation recorded under opID, or nil.
func (l *Log) FindByOpID(opID string) *models.Operation {
	for i := range l.ops {
		if l.ops[i].OpID == opID {
			return &l.ops[i]
		}
	}
	return nil
}

// Seq returns the last issued sequence number.
func (l *Log) Seq() int {
	return l.seq
}

// Operations returns a copy of the full log, inactive entries included.
func (l *Log) Operations() []models.Operation {
	ops := make([]models.Operation, len(l.ops))
	copy(ops, l.ops)
	return ops
}
