package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgramType is a coarse classification of a program's goal.
type ProgramType string

const (
	ProgramStrength    ProgramType = "strength"
	ProgramHypertrophy ProgramType = "hypertrophy"
	ProgramEndurance   ProgramType = "endurance"
	ProgramGeneral     ProgramType = "general"
)

// Difficulty grades a program.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Program owns an ordered collection of cycles and keeps two invariants
// across every mutation: at most one cycle is active, and no two cycles'
// effective date ranges overlap. Program exclusively owns its cycles; a
// cycle refers back to it by ProgramID only.
type Program struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID           primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Name              string             `bson:"name" json:"name"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Type              ProgramType        `bson:"type,omitempty" json:"type,omitempty"`
	Difficulty        Difficulty         `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Tags              []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	DefaultRecurrence *Recurrence        `bson:"defaultRecurrence,omitempty" json:"defaultRecurrence,omitempty"`
	Cycles            []Cycle            `bson:"cycles" json:"cycles"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CycleParams carries the caller-supplied fields for a new cycle.
type CycleParams struct {
	StartDate  time.Time
	EndDate    *time.Time
	Recurrence *Recurrence
}

// NextCycleNumber is max(existing cycle numbers)+1, starting at 1. Numbers
// are never reused after a deletion.
func (p Program) NextCycleNumber() int {
	max := 0
	for _, c := range p.Cycles {
		if c.CycleNumber > max {
			max = c.CycleNumber
		}
	}
	return max + 1
}

// ActiveCycle returns the first active cycle. By construction there is at
// most one.
func (p Program) ActiveCycle() (Cycle, bool) {
	for _, c := range p.Cycles {
		if c.Active {
			return c, true
		}
	}
	return Cycle{}, false
}

// CompletedCycles returns the completed cycles in collection order.
func (p Program) CompletedCycles() []Cycle {
	var out []Cycle
	for _, c := range p.Cycles {
		if c.Completed {
			out = append(out, c)
		}
	}
	return out
}

// CycleByID looks up a cycle and its index within the program.
func (p Program) CycleByID(id primitive.ObjectID) (Cycle, int, bool) {
	for i, c := range p.Cycles {
		if c.ID == id {
			return c, i, true
		}
	}
	return Cycle{}, -1, false
}

// WouldCycleOverlap probes whether a cycle running [start, end] would
// overlap any existing cycle's effective range. An open end gets the same
// soft default EffectiveEndDate uses.
func (p Program) WouldCycleOverlap(start time.Time, end *time.Time) bool {
	candidate := Cycle{StartDate: DateOnly(start)}
	if end != nil {
		e := DateOnly(*end)
		candidate.EndDate = &e
	}
	return p.overlapsAny(candidate)
}

func (p Program) overlapsAny(candidate Cycle) bool {
	start := DateOnly(candidate.StartDate)
	end := candidate.EffectiveEndDate()
	for _, other := range p.Cycles {
		if start.Before(other.EffectiveEndDate()) && end.After(DateOnly(other.StartDate)) {
			return true
		}
	}
	return false
}

// CreateCycle validates the new cycle's date range against every existing
// cycle, then appends it with the next cycle number. The recurrence falls
// back to the program default when not supplied. Existing cycles'
// activation flags are left untouched; switching the program over to the
// new cycle is ActivateCycle's job, not this one's. The new cycle comes in
// active only when nothing else already is, keeping the single-active
// invariant without deactivating anyone.
func (p Program) CreateCycle(params CycleParams, asOf time.Time) (Program, Cycle, error) {
	probe := Cycle{StartDate: DateOnly(params.StartDate)}
	if params.EndDate != nil {
		e := DateOnly(*params.EndDate)
		probe.EndDate = &e
	}
	if p.overlapsAny(probe) {
		return p, Cycle{}, fmt.Errorf("create cycle starting %s: %w", DateOnly(params.StartDate).Format("2006-01-02"), ErrCycleOverlap)
	}

	recurrence := params.Recurrence
	if recurrence == nil {
		recurrence = p.DefaultRecurrence
	}

	cycle := NewCycle(p.ID, p.NextCycleNumber(), params.StartDate, params.EndDate, recurrence, asOf)
	if _, exists := p.ActiveCycle(); exists {
		cycle.Active = false
	}

	cycles := make([]Cycle, len(p.Cycles), len(p.Cycles)+1)
	copy(cycles, p.Cycles)
	p.Cycles = append(cycles, cycle)
	return p, cycle, nil
}

// ActivateCycle starts the target cycle and stops every other active cycle
// in one replacement; the program is never left half-switched. Starting
// fails on a completed target or when asOf is outside its effective range,
// and a failure changes nothing.
func (p Program) ActivateCycle(cycleID primitive.ObjectID, asOf time.Time) (Program, error) {
	target, idx, found := p.CycleByID(cycleID)
	if !found {
		return p, fmt.Errorf("activate cycle %s: %w", cycleID.Hex(), ErrCycleNotFound)
	}

	started, err := target.Start(asOf)
	if err != nil {
		return p, err
	}

	cycles := make([]Cycle, len(p.Cycles))
	for i, c := range p.Cycles {
		if i == idx {
			cycles[i] = started
			continue
		}
		cycles[i] = c.Stop()
	}
	p.Cycles = cycles
	return p, nil
}

// RefreshCycleActivation reconciles every cycle's active flag purely from
// date ranges: a cycle should be active iff it is not completed and asOf
// falls inside its effective range. Previous activation state is ignored.
// Ranges cannot overlap through CreateCycle, so at most one cycle matches;
// if bypassed data contains overlaps anyway, the first match wins and the
// invariant holds over the data.
func (p Program) RefreshCycleActivation(asOf time.Time) Program {
	cycles := make([]Cycle, len(p.Cycles))
	claimed := false
	for i, c := range p.Cycles {
		shouldBeActive := !claimed && !c.Completed && c.InRange(asOf)
		if shouldBeActive {
			claimed = true
		}
		c.Active = shouldBeActive
		cycles[i] = c
	}
	p.Cycles = cycles
	return p
}

// CompleteCurrentCycle completes the active cycle, if any. With no active
// cycle it is a silent no-op.
func (p Program) CompleteCurrentCycle(asOf time.Time) Program {
	_, idx, found := p.activeCycleIndex()
	if !found {
		return p
	}
	cycles := make([]Cycle, len(p.Cycles))
	copy(cycles, p.Cycles)
	cycles[idx] = cycles[idx].Complete(asOf)
	p.Cycles = cycles
	return p
}

// ReplaceCycle swaps out the cycle with the same ID.
func (p Program) ReplaceCycle(updated Cycle) (Program, error) {
	_, idx, found := p.CycleByID(updated.ID)
	if !found {
		return p, fmt.Errorf("replace cycle %s: %w", updated.ID.Hex(), ErrCycleNotFound)
	}
	cycles := make([]Cycle, len(p.Cycles))
	copy(cycles, p.Cycles)
	cycles[idx] = updated
	p.Cycles = cycles
	return p, nil
}

// RemoveCycle deletes the cycle with the given ID. Cycle numbers of the
// remaining cycles are not renumbered.
func (p Program) RemoveCycle(cycleID primitive.ObjectID) (Program, error) {
	_, idx, found := p.CycleByID(cycleID)
	if !found {
		return p, fmt.Errorf("remove cycle %s: %w", cycleID.Hex(), ErrCycleNotFound)
	}
	cycles := make([]Cycle, 0, len(p.Cycles)-1)
	cycles = append(cycles, p.Cycles[:idx]...)
	cycles = append(cycles, p.Cycles[idx+1:]...)
	p.Cycles = cycles
	return p, nil
}

func (p Program) activeCycleIndex() (Cycle, int, bool) {
	for i, c := range p.Cycles {
		if c.Active {
			return c, i, true
		}
	}
	return Cycle{}, -1, false
}
