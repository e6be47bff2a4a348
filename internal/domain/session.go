package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is one concrete scheduled occurrence within a cycle, produced by
// recurrence expansion or by a user edit. Time-of-day is irrelevant: Date is
// always a DateOnly value.
type Session struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	CycleID   primitive.ObjectID `bson:"cycleId" json:"cycleId"`
	Date      time.Time          `bson:"date" json:"date"`
	Completed bool               `bson:"completed" json:"completed"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// NewSession creates a scheduled session for the given calendar day.
func NewSession(cycleID primitive.ObjectID, date time.Time) Session {
	return Session{
		ID:      primitive.NewObjectID(),
		CycleID: cycleID,
		Date:    DateOnly(date),
	}
}

// WithDate returns a copy scheduled on a different calendar day.
func (s Session) WithDate(date time.Time) Session {
	s.Date = DateOnly(date)
	return s
}

// MarkCompleted returns a copy with the completion flag set.
func (s Session) MarkCompleted() Session {
	s.Completed = true
	return s
}

// WithNotes returns a copy carrying the given notes.
func (s Session) WithNotes(notes string) Session {
	s.Notes = notes
	return s
}
