package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// RecurrenceType discriminates the serialized form of a recurrence rule.
type RecurrenceType string

const (
	RecurrenceWeekly   RecurrenceType = "weekly"
	RecurrenceCyclic   RecurrenceType = "cyclic"
	RecurrenceInterval RecurrenceType = "interval"
	RecurrenceCustom   RecurrenceType = "custom"
)

// RecurrenceRule is the closed set of patterns that control which calendar
// days a cycle schedules sessions on. Exactly one concrete rule backs any
// given recurrence; there is no state mixing fields of two variants.
type RecurrenceRule interface {
	Type() RecurrenceType

	// Expand materializes the rule over [start, end], both endpoints
	// inclusive, at calendar-day granularity. Time-of-day is stripped
	// before any comparison. start after end yields an empty sequence.
	Expand(start, end time.Time) []time.Time
}

// WeeklyRule schedules sessions on fixed weekdays (1=Monday .. 7=Sunday).
type WeeklyRule struct {
	Days []int
}

func (r WeeklyRule) Type() RecurrenceType { return RecurrenceWeekly }

func (r WeeklyRule) Expand(start, end time.Time) []time.Time {
	start, end = DateOnly(start), DateOnly(end)
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if r.contains(isoWeekday(d)) {
			dates = append(dates, d)
		}
	}
	return dates
}

func (r WeeklyRule) contains(weekday int) bool {
	for _, day := range r.Days {
		if day == weekday {
			return true
		}
	}
	return false
}

// CyclicRule schedules N consecutive workout days followed by M rest days,
// repeating from the start date.
type CyclicRule struct {
	WorkoutDays int
	RestDays    int
}

func (r CyclicRule) Type() RecurrenceType { return RecurrenceCyclic }

func (r CyclicRule) Expand(start, end time.Time) []time.Time {
	// Degenerate parameters would loop wrong; an empty schedule is the
	// contract instead of an error.
	if r.WorkoutDays <= 0 || r.RestDays < 0 {
		return nil
	}
	start, end = DateOnly(start), DateOnly(end)
	period := r.WorkoutDays + r.RestDays
	var dates []time.Time
	pos := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if pos < r.WorkoutDays {
			dates = append(dates, d)
		}
		pos = (pos + 1) % period
	}
	return dates
}

// IntervalRule schedules a session every N days starting on the start date.
type IntervalRule struct {
	EveryNDays int
}

func (r IntervalRule) Type() RecurrenceType { return RecurrenceInterval }

func (r IntervalRule) Expand(start, end time.Time) []time.Time {
	if r.EveryNDays <= 0 {
		return nil
	}
	start, end = DateOnly(start), DateOnly(end)
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, r.EveryNDays) {
		dates = append(dates, d)
	}
	return dates
}

// CustomRule carries an opaque pattern for schedules the built-in variants
// cannot express. Expansion is an extension point and produces nothing; the
// pattern round-trips through serialization untouched.
type CustomRule struct {
	Pattern map[string]string
}

func (r CustomRule) Type() RecurrenceType { return RecurrenceCustom }

func (r CustomRule) Expand(start, end time.Time) []time.Time {
	return nil
}

// Recurrence wraps a RecurrenceRule so it can live inside bson and json
// documents. A nil *Recurrence field serializes as absent, which callers
// rely on to tell "no recurrence" apart from a zero-valued one.
type Recurrence struct {
	Rule RecurrenceRule
}

// NewRecurrence wraps a rule for embedding in a Cycle or Program.
func NewRecurrence(rule RecurrenceRule) *Recurrence {
	if rule == nil {
		return nil
	}
	return &Recurrence{Rule: rule}
}

// Expand delegates to the wrapped rule; a nil receiver expands to nothing.
func (r *Recurrence) Expand(start, end time.Time) []time.Time {
	if r == nil || r.Rule == nil {
		return nil
	}
	return r.Rule.Expand(start, end)
}

// recurrenceDoc is the serialized envelope. Only the fields of the variant
// named by Type are ever populated.
type recurrenceDoc struct {
	Type        RecurrenceType    `bson:"type" json:"type"`
	Days        []int             `bson:"days,omitempty" json:"days,omitempty"`
	WorkoutDays int               `bson:"workoutDays,omitempty" json:"workoutDays,omitempty"`
	RestDays    int               `bson:"restDays,omitempty" json:"restDays,omitempty"`
	EveryNDays  int               `bson:"everyNDays,omitempty" json:"everyNDays,omitempty"`
	Pattern     map[string]string `bson:"pattern,omitempty" json:"pattern,omitempty"`
}

func (r Recurrence) doc() (recurrenceDoc, error) {
	switch rule := r.Rule.(type) {
	case WeeklyRule:
		return recurrenceDoc{Type: RecurrenceWeekly, Days: rule.Days}, nil
	case CyclicRule:
		return recurrenceDoc{Type: RecurrenceCyclic, WorkoutDays: rule.WorkoutDays, RestDays: rule.RestDays}, nil
	case IntervalRule:
		return recurrenceDoc{Type: RecurrenceInterval, EveryNDays: rule.EveryNDays}, nil
	case CustomRule:
		return recurrenceDoc{Type: RecurrenceCustom, Pattern: rule.Pattern}, nil
	default:
		return recurrenceDoc{}, fmt.Errorf("unsupported recurrence rule %T", r.Rule)
	}
}

func (d recurrenceDoc) rule() (RecurrenceRule, error) {
	switch d.Type {
	case RecurrenceWeekly:
		return WeeklyRule{Days: d.Days}, nil
	case RecurrenceCyclic:
		return CyclicRule{WorkoutDays: d.WorkoutDays, RestDays: d.RestDays}, nil
	case RecurrenceInterval:
		return IntervalRule{EveryNDays: d.EveryNDays}, nil
	case RecurrenceCustom:
		return CustomRule{Pattern: d.Pattern}, nil
	default:
		return nil, fmt.Errorf("unknown recurrence type %q", d.Type)
	}
}

func (r Recurrence) MarshalJSON() ([]byte, error) {
	doc, err := r.doc()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var doc recurrenceDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	rule, err := doc.rule()
	if err != nil {
		return err
	}
	r.Rule = rule
	return nil
}

func (r Recurrence) MarshalBSON() ([]byte, error) {
	doc, err := r.doc()
	if err != nil {
		return nil, err
	}
	return bson.Marshal(doc)
}

func (r *Recurrence) UnmarshalBSON(data []byte) error {
	var doc recurrenceDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	rule, err := doc.rule()
	if err != nil {
		return err
	}
	r.Rule = rule
	return nil
}

// DateOnly strips the time-of-day component, pinning the date in UTC. All
// scheduling arithmetic happens on these normalized values.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO numbering (Monday=1 .. Sunday=7).
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}
