package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RescheduleFutureSessions moves the identified session to newDate and
// shifts every session of the cycle scheduled strictly after originalDate,
// and not yet completed, by the same signed day delta. Sessions on or
// before originalDate and completed sessions stay where they are regardless
// of the delta's sign. This cascades a single edit through the rest of the
// schedule without re-running the recurrence generator, which would clobber
// manual edits and completed sessions.
//
// It returns the updated cycle and the number of follow-on sessions moved.
func RescheduleFutureSessions(c Cycle, sessionID primitive.ObjectID, newDate, originalDate time.Time) (Cycle, int, error) {
	_, idx, found := c.SessionByID(sessionID)
	if !found {
		return c, 0, fmt.Errorf("reschedule session %s: %w", sessionID.Hex(), ErrSessionNotFound)
	}

	origin := DateOnly(originalDate)
	target := DateOnly(newDate)
	delta := daysBetween(origin, target)

	sessions := make([]Session, len(c.Sessions))
	copy(sessions, c.Sessions)
	sessions[idx] = sessions[idx].WithDate(target)

	moved := 0
	if delta != 0 {
		for i, s := range sessions {
			if i == idx || s.Completed {
				continue
			}
			if DateOnly(s.Date).After(origin) {
				sessions[i] = s.WithDate(DateOnly(s.Date).AddDate(0, 0, delta))
				moved++
			}
		}
	}

	c.Sessions = sessions
	return c, moved, nil
}

// daysBetween counts whole days from a to b; negative when b is earlier.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
