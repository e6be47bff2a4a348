package service

import (
	"alcyxob/progression/internal/domain"
	"alcyxob/progression/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeProgramRepo is an in-memory repository.ProgramRepository.
type fakeProgramRepo struct {
	programs  map[primitive.ObjectID]domain.Program
	updateErr error
	updates   int
}

func newFakeProgramRepo() *fakeProgramRepo {
	return &fakeProgramRepo{programs: make(map[primitive.ObjectID]domain.Program)}
}

func (f *fakeProgramRepo) Create(_ context.Context, p *domain.Program) (primitive.ObjectID, error) {
	p.ID = primitive.NewObjectID()
	f.programs[p.ID] = *p
	return p.ID, nil
}

func (f *fakeProgramRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Program, error) {
	p, ok := f.programs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProgramRepo) GetByOwnerID(_ context.Context, ownerID primitive.ObjectID) ([]domain.Program, error) {
	var out []domain.Program
	for _, p := range f.programs {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProgramRepo) GetAll(_ context.Context) ([]domain.Program, error) {
	var out []domain.Program
	for _, p := range f.programs {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProgramRepo) Update(_ context.Context, p *domain.Program) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.programs[p.ID]; !ok {
		return repository.ErrNotFound
	}
	f.programs[p.ID] = *p
	f.updates++
	return nil
}

func (f *fakeProgramRepo) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	p, ok := f.programs[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(f.programs, id)
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOf(t time.Time) *time.Time { return &t }

type fixture struct {
	svc     ProgramService
	repo    *fakeProgramRepo
	ownerID primitive.ObjectID
	program *domain.Program
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeProgramRepo()
	svc := NewProgramService(repo, zerolog.Nop())
	ownerID := primitive.NewObjectID()

	program, err := svc.CreateProgram(context.Background(), ownerID, CreateProgramInput{
		Name:              "Progression Base",
		Type:              domain.ProgramStrength,
		Difficulty:        domain.DifficultyIntermediate,
		DefaultRecurrence: domain.NewRecurrence(domain.WeeklyRule{Days: []int{1, 3, 5}}),
	})
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, ownerID: ownerID, program: program}
}

func (fx *fixture) stored(t *testing.T) domain.Program {
	t.Helper()
	p, ok := fx.repo.programs[fx.program.ID]
	require.True(t, ok)
	return p
}

func TestProgramService_CreateProgram_Validation(t *testing.T) {
	svc := NewProgramService(newFakeProgramRepo(), zerolog.Nop())

	_, err := svc.CreateProgram(context.Background(), primitive.NilObjectID, CreateProgramInput{Name: "x"})
	assert.Error(t, err)

	_, err = svc.CreateProgram(context.Background(), primitive.NewObjectID(), CreateProgramInput{})
	assert.Error(t, err)
}

func TestProgramService_GetProgram_ReturnsOwnedProgram(t *testing.T) {
	fx := newFixture(t)

	got, err := fx.svc.GetProgram(context.Background(), fx.ownerID, fx.program.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fx.program.ID, got.ID)
	assert.Equal(t, "Progression Base", got.Name)
}

func TestProgramService_CreateCycle_PersistsAggregate(t *testing.T) {
	fx := newFixture(t)

	cycle, err := fx.svc.CreateCycle(context.Background(), fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.January, 5),
		EndDate:   endOf(day(2026, time.February, 2)),
	}, day(2026, time.January, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, cycle.CycleNumber)
	require.NotNil(t, cycle.Recurrence, "program default recurrence applies")

	stored := fx.stored(t)
	require.Len(t, stored.Cycles, 1)
	assert.Equal(t, cycle.ID, stored.Cycles[0].ID)
}

func TestProgramService_CreateCycle_OverlapLeavesStoreUntouched(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateCycle(context.Background(), fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.January, 5),
		EndDate:   endOf(day(2026, time.February, 2)),
	}, day(2026, time.January, 5))
	require.NoError(t, err)
	updatesBefore := fx.repo.updates

	_, err = fx.svc.CreateCycle(context.Background(), fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.January, 20),
	}, day(2026, time.January, 20))
	require.ErrorIs(t, err, domain.ErrCycleOverlap)

	assert.Equal(t, updatesBefore, fx.repo.updates, "no save on a failed create")
	assert.Len(t, fx.stored(t).Cycles, 1)
}

func TestProgramService_OwnershipEnforced(t *testing.T) {
	fx := newFixture(t)
	stranger := primitive.NewObjectID()

	_, err := fx.svc.GetProgram(context.Background(), stranger, fx.program.ID)
	assert.ErrorIs(t, err, ErrProgramAccessDenied)

	_, err = fx.svc.CreateCycle(context.Background(), stranger, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.January, 5),
	}, day(2026, time.January, 5))
	assert.ErrorIs(t, err, ErrProgramAccessDenied)
}

func TestProgramService_ProgramNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.GetProgram(context.Background(), fx.ownerID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestProgramService_ActivateAndCompleteFlow(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.svc.CreateCycle(ctx, fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.January, 5),
		EndDate:   endOf(day(2026, time.February, 2)),
	}, day(2026, time.January, 5))
	require.NoError(t, err)
	second, err := fx.svc.CreateCycle(ctx, fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.February, 9),
		EndDate:   endOf(day(2026, time.March, 9)),
	}, day(2026, time.January, 5))
	require.NoError(t, err)

	program, err := fx.svc.ActivateCycle(ctx, fx.ownerID, fx.program.ID, second.ID, day(2026, time.February, 10))
	require.NoError(t, err)

	active, ok := program.ActiveCycle()
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
	stored, _, _ := fx.stored(t).CycleByID(first.ID)
	assert.False(t, stored.Active)

	program, err = fx.svc.CompleteCurrentCycle(ctx, fx.ownerID, fx.program.ID, day(2026, time.February, 20))
	require.NoError(t, err)
	_, ok = program.ActiveCycle()
	assert.False(t, ok)
	assert.Len(t, program.CompletedCycles(), 1)
}

func TestProgramService_GenerateScheduledSessions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cycle, err := fx.svc.CreateCycle(ctx, fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.January, 5),
		EndDate:   endOf(day(2026, time.February, 2)),
	}, day(2026, time.January, 5))
	require.NoError(t, err)

	generated, err := fx.svc.GenerateScheduledSessions(ctx, fx.ownerID, fx.program.ID, cycle.ID, false)
	require.NoError(t, err)
	assert.Len(t, generated.Sessions, 13)

	// Idempotent under replace=false.
	again, err := fx.svc.GenerateScheduledSessions(ctx, fx.ownerID, fx.program.ID, cycle.ID, false)
	require.NoError(t, err)
	assert.Len(t, again.Sessions, 13)

	_, err = fx.svc.GenerateScheduledSessions(ctx, fx.ownerID, fx.program.ID, primitive.NewObjectID(), false)
	assert.ErrorIs(t, err, domain.ErrCycleNotFound)
}

func TestProgramService_CompleteSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cycle, err := fx.svc.CreateCycle(ctx, fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate: day(2026, time.January, 5),
		EndDate:   endOf(day(2026, time.February, 2)),
	}, day(2026, time.January, 5))
	require.NoError(t, err)
	generated, err := fx.svc.GenerateScheduledSessions(ctx, fx.ownerID, fx.program.ID, cycle.ID, false)
	require.NoError(t, err)

	target := generated.Sessions[0]
	session, err := fx.svc.CompleteSession(ctx, fx.ownerID, fx.program.ID, cycle.ID, target.ID)
	require.NoError(t, err)
	assert.True(t, session.Completed)

	storedCycle, _, _ := fx.stored(t).CycleByID(cycle.ID)
	storedSession, _, found := storedCycle.SessionByID(target.ID)
	require.True(t, found)
	assert.True(t, storedSession.Completed)

	_, err = fx.svc.CompleteSession(ctx, fx.ownerID, fx.program.ID, cycle.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestProgramService_RescheduleSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cycle, err := fx.svc.CreateCycle(ctx, fx.ownerID, fx.program.ID, domain.CycleParams{
		StartDate:  day(2026, time.March, 10),
		EndDate:    endOf(day(2026, time.March, 24)),
		Recurrence: domain.NewRecurrence(domain.IntervalRule{EveryNDays: 7}),
	}, day(2026, time.March, 10))
	require.NoError(t, err)
	generated, err := fx.svc.GenerateScheduledSessions(ctx, fx.ownerID, fx.program.ID, cycle.ID, false)
	require.NoError(t, err)
	require.Len(t, generated.Sessions, 3) // Mar 10, 17, 24

	t.Run("with propagation later sessions cascade", func(t *testing.T) {
		edited := generated.Sessions[1]
		updated, err := fx.svc.RescheduleSession(ctx, fx.ownerID, fx.program.ID, cycle.ID, edited.ID, day(2026, time.March, 20), true)
		require.NoError(t, err)

		assert.Equal(t, day(2026, time.March, 10), updated.Sessions[0].Date)
		assert.Equal(t, day(2026, time.March, 20), updated.Sessions[1].Date)
		assert.Equal(t, day(2026, time.March, 27), updated.Sessions[2].Date)

		storedCycle, _, _ := fx.stored(t).CycleByID(cycle.ID)
		assert.Equal(t, day(2026, time.March, 27), storedCycle.Sessions[2].Date)
	})

	t.Run("without propagation only the edited session moves", func(t *testing.T) {
		edited := generated.Sessions[0]
		updated, err := fx.svc.RescheduleSession(ctx, fx.ownerID, fx.program.ID, cycle.ID, edited.ID, day(2026, time.March, 11), false)
		require.NoError(t, err)

		assert.Equal(t, day(2026, time.March, 11), updated.Sessions[0].Date)
		assert.Equal(t, day(2026, time.March, 20), updated.Sessions[1].Date)
		assert.Equal(t, day(2026, time.March, 27), updated.Sessions[2].Date)
	})
}

func TestProgramService_RefreshAllCycleActivation(t *testing.T) {
	repo := newFakeProgramRepo()
	svc := NewProgramService(repo, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		owner := primitive.NewObjectID()
		program, err := svc.CreateProgram(ctx, owner, CreateProgramInput{Name: "p"})
		require.NoError(t, err)
		_, err = svc.CreateCycle(ctx, owner, program.ID, domain.CycleParams{
			StartDate: day(2026, time.January, 5),
			EndDate:   endOf(day(2026, time.February, 2)),
		}, day(2026, time.January, 5))
		require.NoError(t, err)
	}

	refreshed, err := svc.RefreshAllCycleActivation(ctx, day(2026, time.February, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed)

	for _, p := range repo.programs {
		_, active := p.ActiveCycle()
		assert.False(t, active, "no cycle is in range on Feb 5")
	}
}
