package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cycleWithSessions builds a cycle holding sessions on the given days.
func cycleWithSessions(dates ...time.Time) Cycle {
	c := Cycle{ID: primitive.NewObjectID()}
	for _, d := range dates {
		c.Sessions = append(c.Sessions, NewSession(c.ID, d))
	}
	return c
}

func TestRescheduleFutureSessions(t *testing.T) {
	d10 := day(2026, time.March, 10)
	d17 := day(2026, time.March, 17)
	d24 := day(2026, time.March, 24)

	t.Run("positive delta shifts later sessions", func(t *testing.T) {
		c := cycleWithSessions(d10, d17, d24)
		edited := c.Sessions[1]

		updated, moved, err := RescheduleFutureSessions(c, edited.ID, day(2026, time.March, 20), edited.Date)
		require.NoError(t, err)
		assert.Equal(t, 1, moved)

		assert.Equal(t, d10, updated.Sessions[0].Date, "earlier session untouched")
		assert.Equal(t, day(2026, time.March, 20), updated.Sessions[1].Date)
		assert.Equal(t, day(2026, time.March, 27), updated.Sessions[2].Date)
	})

	t.Run("completed later session stays put", func(t *testing.T) {
		c := cycleWithSessions(d10, d17, d24)
		c.Sessions[2] = c.Sessions[2].MarkCompleted()
		edited := c.Sessions[1]

		updated, moved, err := RescheduleFutureSessions(c, edited.ID, day(2026, time.March, 20), edited.Date)
		require.NoError(t, err)
		assert.Equal(t, 0, moved)
		assert.Equal(t, d24, updated.Sessions[2].Date)
	})

	t.Run("negative delta pulls later sessions forward", func(t *testing.T) {
		c := cycleWithSessions(d10, d17, d24)
		edited := c.Sessions[1]

		updated, moved, err := RescheduleFutureSessions(c, edited.ID, day(2026, time.March, 14), edited.Date)
		require.NoError(t, err)
		assert.Equal(t, 1, moved)

		assert.Equal(t, d10, updated.Sessions[0].Date)
		assert.Equal(t, day(2026, time.March, 14), updated.Sessions[1].Date)
		assert.Equal(t, day(2026, time.March, 21), updated.Sessions[2].Date)
	})

	t.Run("zero delta moves nothing", func(t *testing.T) {
		c := cycleWithSessions(d10, d17, d24)
		edited := c.Sessions[1]

		updated, moved, err := RescheduleFutureSessions(c, edited.ID, d17, edited.Date)
		require.NoError(t, err)
		assert.Equal(t, 0, moved)
		assert.Equal(t, c.Sessions, updated.Sessions)
	})

	t.Run("unknown session id", func(t *testing.T) {
		c := cycleWithSessions(d10, d17)
		_, _, err := RescheduleFutureSessions(c, primitive.NewObjectID(), d24, d17)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("original cycle value is not mutated", func(t *testing.T) {
		c := cycleWithSessions(d10, d17, d24)
		edited := c.Sessions[1]

		_, _, err := RescheduleFutureSessions(c, edited.ID, day(2026, time.March, 20), edited.Date)
		require.NoError(t, err)
		assert.Equal(t, d17, c.Sessions[1].Date)
		assert.Equal(t, d24, c.Sessions[2].Date)
	})
}
