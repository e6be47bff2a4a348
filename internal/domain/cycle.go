package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// rangeCheckDefaultDays bounds an open-ended cycle for date-range
	// checks (overlap validation, activation). Never persisted.
	rangeCheckDefaultDays = 365

	// planningDefaultDays bounds session generation for an open-ended
	// cycle. Deliberately shorter than the range-check default: "how long
	// to plan" is not "how long the cycle counts as in-range".
	planningDefaultDays = 84
)

// Cycle is one time-boxed, schedulable run of a Program. Mutating methods
// use value receivers and return a fresh Cycle; a failed transition leaves
// the caller's value untouched.
type Cycle struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	ProgramID   primitive.ObjectID `bson:"programId" json:"programId"`
	CycleNumber int                `bson:"cycleNumber" json:"cycleNumber"`
	StartDate   time.Time          `bson:"startDate" json:"startDate"`
	EndDate     *time.Time         `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Active      bool               `bson:"active" json:"active"`
	Completed   bool               `bson:"completed" json:"completed"`
	Recurrence  *Recurrence        `bson:"recurrence,omitempty" json:"recurrence,omitempty"`
	Sessions    []Session          `bson:"sessions" json:"sessions"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// NewCycle creates a cycle in the active, not-completed state. Dates are
// normalized to calendar days before they are stored.
func NewCycle(programID primitive.ObjectID, cycleNumber int, startDate time.Time, endDate *time.Time, recurrence *Recurrence, now time.Time) Cycle {
	c := Cycle{
		ID:          primitive.NewObjectID(),
		ProgramID:   programID,
		CycleNumber: cycleNumber,
		StartDate:   DateOnly(startDate),
		Active:      true,
		Recurrence:  recurrence,
		CreatedAt:   now.UTC(),
	}
	if endDate != nil {
		end := DateOnly(*endDate)
		c.EndDate = &end
	}
	return c
}

// EffectiveEndDate is the end date used for range checks: the explicit end
// date when set, otherwise a soft default of one year past the start. The
// default is only ever computed, never written back.
func (c Cycle) EffectiveEndDate() time.Time {
	if c.EndDate != nil {
		return DateOnly(*c.EndDate)
	}
	return DateOnly(c.StartDate).AddDate(0, 0, rangeCheckDefaultDays)
}

// planningEndDate bounds session generation for open-ended cycles.
func (c Cycle) planningEndDate() time.Time {
	if c.EndDate != nil {
		return DateOnly(*c.EndDate)
	}
	return DateOnly(c.StartDate).AddDate(0, 0, planningDefaultDays)
}

// InRange reports whether asOf falls within [StartDate, EffectiveEndDate],
// both endpoints inclusive, at day granularity.
func (c Cycle) InRange(asOf time.Time) bool {
	day := DateOnly(asOf)
	return !day.Before(DateOnly(c.StartDate)) && !day.After(c.EffectiveEndDate())
}

// Start activates the cycle. It fails if the cycle is already completed or
// if asOf falls outside the effective date range.
func (c Cycle) Start(asOf time.Time) (Cycle, error) {
	if c.Completed {
		return c, fmt.Errorf("start cycle %d: %w", c.CycleNumber, ErrCycleCompleted)
	}
	if !c.InRange(asOf) {
		return c, fmt.Errorf("start cycle %d on %s: %w", c.CycleNumber, DateOnly(asOf).Format("2006-01-02"), ErrDateOutOfRange)
	}
	c.Active = true
	return c, nil
}

// Stop deactivates the cycle. Stopping an already-inactive cycle is a
// silent no-op, not an error.
func (c Cycle) Stop() Cycle {
	c.Active = false
	return c
}

// Complete terminally finishes the cycle: active is forced off and, when no
// explicit end date was ever set, asOf becomes the end date. An explicit
// end date is never overwritten.
func (c Cycle) Complete(asOf time.Time) Cycle {
	c.Completed = true
	c.Active = false
	if c.EndDate == nil {
		end := DateOnly(asOf)
		c.EndDate = &end
	}
	return c
}

// GenerateScheduledSessions expands the cycle's recurrence over its start
// date through its planning end and materializes a session per produced
// day. With replaceExisting the current session collection is discarded
// first; otherwise days that already carry a session are skipped, so
// re-running with an unchanged recurrence adds nothing. Sessions that no
// longer match a narrowed recurrence are deliberately not removed.
func (c Cycle) GenerateScheduledSessions(replaceExisting bool) Cycle {
	dates := c.Recurrence.Expand(c.StartDate, c.planningEndDate())

	var sessions []Session
	if replaceExisting {
		sessions = make([]Session, 0, len(dates))
	} else {
		sessions = append(sessions, c.Sessions...)
	}

	for _, date := range dates {
		if !replaceExisting && hasSessionOn(sessions, date) {
			continue
		}
		sessions = append(sessions, NewSession(c.ID, date))
	}
	c.Sessions = sessions
	return c
}

// SessionByID looks up a session and its index within the cycle.
func (c Cycle) SessionByID(id primitive.ObjectID) (Session, int, bool) {
	for i, s := range c.Sessions {
		if s.ID == id {
			return s, i, true
		}
	}
	return Session{}, -1, false
}

// ReplaceSession returns a copy with the session at index i swapped out.
func (c Cycle) ReplaceSession(i int, s Session) Cycle {
	sessions := make([]Session, len(c.Sessions))
	copy(sessions, c.Sessions)
	sessions[i] = s
	c.Sessions = sessions
	return c
}

func hasSessionOn(sessions []Session, date time.Time) bool {
	day := DateOnly(date)
	for _, s := range sessions {
		if DateOnly(s.Date).Equal(day) {
			return true
		}
	}
	return false
}
