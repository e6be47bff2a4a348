package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeeklyRule_Expand(t *testing.T) {
	// 2026-01-05 is a Monday.
	monday := day(2026, time.January, 5)

	tests := []struct {
		name     string
		days     []int
		start    time.Time
		end      time.Time
		expected []time.Time
	}{
		{
			name:  "Mon/Wed/Fri over a 14-day window",
			days:  []int{1, 3, 5},
			start: monday,
			end:   monday.AddDate(0, 0, 13),
			expected: []time.Time{
				day(2026, time.January, 5),
				day(2026, time.January, 7),
				day(2026, time.January, 9),
				day(2026, time.January, 12),
				day(2026, time.January, 14),
				day(2026, time.January, 16),
			},
		},
		{
			name:     "empty day set produces nothing",
			days:     nil,
			start:    monday,
			end:      monday.AddDate(0, 0, 13),
			expected: nil,
		},
		{
			name:     "single-day window with matching rule",
			days:     []int{1},
			start:    monday,
			end:      monday,
			expected: []time.Time{monday},
		},
		{
			name:     "single-day window with non-matching rule",
			days:     []int{2},
			start:    monday,
			end:      monday,
			expected: nil,
		},
		{
			name:     "start after end produces nothing",
			days:     []int{1, 2, 3, 4, 5, 6, 7},
			start:    monday,
			end:      monday.AddDate(0, 0, -1),
			expected: nil,
		},
		{
			name:  "sunday maps to 7",
			days:  []int{7},
			start: monday,
			end:   monday.AddDate(0, 0, 6),
			expected: []time.Time{
				day(2026, time.January, 11),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeeklyRule{Days: tt.days}.Expand(tt.start, tt.end)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWeeklyRule_ExpandStripsTimeOfDay(t *testing.T) {
	start := time.Date(2026, time.January, 5, 18, 30, 12, 0, time.UTC)
	end := time.Date(2026, time.January, 5, 6, 0, 0, 0, time.UTC)

	got := WeeklyRule{Days: []int{1}}.Expand(start, end)
	require.Len(t, got, 1)
	assert.Equal(t, day(2026, time.January, 5), got[0])
}

func TestCyclicRule_Expand(t *testing.T) {
	start := day(2026, time.March, 2)

	tests := []struct {
		name        string
		workoutDays int
		restDays    int
		windowDays  int
		offsets     []int
	}{
		{
			name:        "three on one off over eight days",
			workoutDays: 3,
			restDays:    1,
			windowDays:  8,
			offsets:     []int{0, 1, 2, 4, 5, 6},
		},
		{
			name:        "no rest days schedules every day",
			workoutDays: 2,
			restDays:    0,
			windowDays:  5,
			offsets:     []int{0, 1, 2, 3, 4},
		},
		{
			name:        "zero workout days is guarded",
			workoutDays: 0,
			restDays:    2,
			windowDays:  8,
			offsets:     nil,
		},
		{
			name:        "negative rest days is guarded",
			workoutDays: 3,
			restDays:    -1,
			windowDays:  8,
			offsets:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := CyclicRule{WorkoutDays: tt.workoutDays, RestDays: tt.restDays}
			got := rule.Expand(start, start.AddDate(0, 0, tt.windowDays-1))

			var expected []time.Time
			for _, off := range tt.offsets {
				expected = append(expected, start.AddDate(0, 0, off))
			}
			assert.Equal(t, expected, got)
		})
	}
}

func TestIntervalRule_Expand(t *testing.T) {
	start := day(2026, time.April, 6)

	t.Run("every second day over a week", func(t *testing.T) {
		got := IntervalRule{EveryNDays: 2}.Expand(start, start.AddDate(0, 0, 6))
		expected := []time.Time{
			start,
			start.AddDate(0, 0, 2),
			start.AddDate(0, 0, 4),
			start.AddDate(0, 0, 6),
		}
		assert.Equal(t, expected, got)
	})

	t.Run("single-day window emits the start", func(t *testing.T) {
		got := IntervalRule{EveryNDays: 3}.Expand(start, start)
		assert.Equal(t, []time.Time{start}, got)
	})

	t.Run("non-positive interval is guarded", func(t *testing.T) {
		assert.Empty(t, IntervalRule{EveryNDays: 0}.Expand(start, start.AddDate(0, 0, 30)))
	})
}

func TestCustomRule_ExpandIsEmpty(t *testing.T) {
	rule := CustomRule{Pattern: map[string]string{"week_a": "push/pull"}}
	assert.Empty(t, rule.Expand(day(2026, time.January, 1), day(2026, time.December, 31)))
}

func TestRecurrence_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rule RecurrenceRule
	}{
		{name: "weekly", rule: WeeklyRule{Days: []int{1, 3, 5}}},
		{name: "cyclic", rule: CyclicRule{WorkoutDays: 3, RestDays: 1}},
		{name: "cyclic with zero rest", rule: CyclicRule{WorkoutDays: 2}},
		{name: "interval", rule: IntervalRule{EveryNDays: 4}},
		{name: "custom", rule: CustomRule{Pattern: map[string]string{"block": "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Recurrence{Rule: tt.rule})
			require.NoError(t, err)

			var decoded Recurrence
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.rule, decoded.Rule)
		})
	}
}

func TestRecurrence_UnknownTypeRejected(t *testing.T) {
	var decoded Recurrence
	err := json.Unmarshal([]byte(`{"type":"lunar"}`), &decoded)
	assert.Error(t, err)
}

func TestRecurrence_BSONPreservesAbsence(t *testing.T) {
	type holder struct {
		Recurrence *Recurrence `bson:"recurrence,omitempty"`
	}

	t.Run("absent stays absent", func(t *testing.T) {
		data, err := bson.Marshal(holder{})
		require.NoError(t, err)

		var decoded holder
		require.NoError(t, bson.Unmarshal(data, &decoded))
		assert.Nil(t, decoded.Recurrence)
	})

	t.Run("present round-trips", func(t *testing.T) {
		data, err := bson.Marshal(holder{Recurrence: NewRecurrence(WeeklyRule{Days: []int{2, 4}})})
		require.NoError(t, err)

		var decoded holder
		require.NoError(t, bson.Unmarshal(data, &decoded))
		require.NotNil(t, decoded.Recurrence)
		assert.Equal(t, WeeklyRule{Days: []int{2, 4}}, decoded.Recurrence.Rule)
	})
}

func TestRecurrence_NilExpandsToNothing(t *testing.T) {
	var r *Recurrence
	assert.Empty(t, r.Expand(day(2026, time.January, 1), day(2026, time.January, 31)))
}
