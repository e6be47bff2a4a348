package service

import (
	"alcyxob/progression/internal/domain"
	"alcyxob/progression/internal/repository"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrProgramNotFound     = errors.New("program not found")
	ErrProgramAccessDenied = errors.New("access denied to this program")
)

// CreateProgramInput carries the caller-supplied fields for a new program.
type CreateProgramInput struct {
	Name              string
	Description       string
	Type              domain.ProgramType
	Difficulty        domain.Difficulty
	Tags              []string
	DefaultRecurrence *domain.Recurrence
}

// ProgramService orchestrates the scheduling engine against the program
// repository: load the aggregate, apply a pure engine operation, persist
// the replacement. Every "as of now" decision takes an explicit asOf so the
// service is deterministically testable; defaults are resolved at the HTTP
// and cron boundaries only.
type ProgramService interface {
	CreateProgram(ctx context.Context, ownerID primitive.ObjectID, input CreateProgramInput) (*domain.Program, error)
	GetProgram(ctx context.Context, ownerID, programID primitive.ObjectID) (*domain.Program, error)
	ListPrograms(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Program, error)
	DeleteProgram(ctx context.Context, ownerID, programID primitive.ObjectID) error

	CreateCycle(ctx context.Context, ownerID, programID primitive.ObjectID, params domain.CycleParams, asOf time.Time) (*domain.Cycle, error)
	ActivateCycle(ctx context.Context, ownerID, programID, cycleID primitive.ObjectID, asOf time.Time) (*domain.Program, error)
	RefreshCycleActivation(ctx context.Context, ownerID, programID primitive.ObjectID, asOf time.Time) (*domain.Program, error)
	RefreshAllCycleActivation(ctx context.Context, asOf time.Time) (int, error)
	CompleteCurrentCycle(ctx context.Context, ownerID, programID primitive.ObjectID, asOf time.Time) (*domain.Program, error)
	WouldCycleOverlap(ctx context.Context, ownerID, programID primitive.ObjectID, start time.Time, end *time.Time) (bool, error)

	GenerateScheduledSessions(ctx context.Context, ownerID, programID, cycleID primitive.ObjectID, replaceExisting bool) (*domain.Cycle, error)
	CompleteSession(ctx context.Context, ownerID, programID, cycleID, sessionID primitive.ObjectID) (*domain.Session, error)
	RescheduleSession(ctx context.Context, ownerID, programID, cycleID, sessionID primitive.ObjectID, newDate time.Time, propagate bool) (*domain.Cycle, error)
}

type programService struct {
	programRepo repository.ProgramRepository
	logger      zerolog.Logger
}

// NewProgramService creates a new instance of programService.
func NewProgramService(programRepo repository.ProgramRepository, logger zerolog.Logger) ProgramService {
	return &programService{
		programRepo: programRepo,
		logger:      logger.With().Str("component", "program_service").Logger(),
	}
}

// === Program Management ===

func (s *programService) CreateProgram(ctx context.Context, ownerID primitive.ObjectID, input CreateProgramInput) (*domain.Program, error) {
	if ownerID == primitive.NilObjectID || input.Name == "" {
		return nil, errors.New("owner ID and program name are required")
	}

	program := &domain.Program{
		OwnerID:           ownerID,
		Name:              input.Name,
		Description:       input.Description,
		Type:              input.Type,
		Difficulty:        input.Difficulty,
		Tags:              input.Tags,
		DefaultRecurrence: input.DefaultRecurrence,
		Cycles:            []domain.Cycle{},
	}

	programID, err := s.programRepo.Create(ctx, program)
	if err != nil {
		return nil, err
	}
	program.ID = programID
	return program, nil
}

func (s *programService) GetProgram(ctx context.Context, ownerID, programID primitive.ObjectID) (*domain.Program, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}
	return &program, nil
}

func (s *programService) ListPrograms(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Program, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required")
	}
	return s.programRepo.GetByOwnerID(ctx, ownerID)
}

func (s *programService) DeleteProgram(ctx context.Context, ownerID, programID primitive.ObjectID) error {
	err := s.programRepo.Delete(ctx, programID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrProgramNotFound
	}
	return err
}

// === Cycle Management ===

func (s *programService) CreateCycle(ctx context.Context, ownerID, programID primitive.ObjectID, params domain.CycleParams, asOf time.Time) (*domain.Cycle, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}

	updated, cycle, err := program.CreateCycle(params, asOf)
	if err != nil {
		return nil, err
	}

	if err := s.programRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("program_id", programID.Hex()).
		Int("cycle_number", cycle.CycleNumber).
		Msg("cycle created")
	return &cycle, nil
}

func (s *programService) ActivateCycle(ctx context.Context, ownerID, programID, cycleID primitive.ObjectID, asOf time.Time) (*domain.Program, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}

	updated, err := program.ActivateCycle(cycleID, asOf)
	if err != nil {
		return nil, err
	}

	if err := s.programRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *programService) RefreshCycleActivation(ctx context.Context, ownerID, programID primitive.ObjectID, asOf time.Time) (*domain.Program, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}

	updated := program.RefreshCycleActivation(asOf)
	if err := s.programRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// RefreshAllCycleActivation reconciles activation flags across every stored
// program. This is the nightly job's entry point; it reports how many
// programs were updated and keeps going past individual save failures.
func (s *programService) RefreshAllCycleActivation(ctx context.Context, asOf time.Time) (int, error) {
	programs, err := s.programRepo.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for i := range programs {
		updated := programs[i].RefreshCycleActivation(asOf)
		if err := s.programRepo.Update(ctx, &updated); err != nil {
			s.logger.Error().Err(err).
				Str("program_id", programs[i].ID.Hex()).
				Msg("activation refresh failed for program")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *programService) CompleteCurrentCycle(ctx context.Context, ownerID, programID primitive.ObjectID, asOf time.Time) (*domain.Program, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}

	// No active cycle is a no-op; the unchanged program is still saved
	// through the same path for a uniform caller contract.
	updated := program.CompleteCurrentCycle(asOf)
	if err := s.programRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *programService) WouldCycleOverlap(ctx context.Context, ownerID, programID primitive.ObjectID, start time.Time, end *time.Time) (bool, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return false, err
	}
	return program.WouldCycleOverlap(start, end), nil
}

// === Session Management ===

func (s *programService) GenerateScheduledSessions(ctx context.Context, ownerID, programID, cycleID primitive.ObjectID, replaceExisting bool) (*domain.Cycle, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}

	cycle, _, found := program.CycleByID(cycleID)
	if !found {
		return nil, domain.ErrCycleNotFound
	}

	generated := cycle.GenerateScheduledSessions(replaceExisting)
	updated, err := program.ReplaceCycle(generated)
	if err != nil {
		return nil, err
	}

	if err := s.programRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("cycle_id", cycleID.Hex()).
		Int("sessions", len(generated.Sessions)).
		Bool("replaced", replaceExisting).
		Msg("scheduled sessions generated")
	return &generated, nil
}

func (s *programService) CompleteSession(ctx context.Context, ownerID, programID, cycleID, sessionID primitive.ObjectID) (*domain.Session, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}

	cycle, _, found := program.CycleByID(cycleID)
	if !found {
		return nil, domain.ErrCycleNotFound
	}
	session, idx, found := cycle.SessionByID(sessionID)
	if !found {
		return nil, domain.ErrSessionNotFound
	}

	completed := session.MarkCompleted()
	updated, err := program.ReplaceCycle(cycle.ReplaceSession(idx, completed))
	if err != nil {
		return nil, err
	}

	if err := s.programRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &completed, nil
}

// RescheduleSession moves a session to a new calendar day. With propagate
// the edit cascades: every later, not-yet-completed session in the cycle
// shifts by the same day delta.
func (s *programService) RescheduleSession(ctx context.Context, ownerID, programID, cycleID, sessionID primitive.ObjectID, newDate time.Time, propagate bool) (*domain.Cycle, error) {
	program, err := s.loadOwned(ctx, ownerID, programID)
	if err != nil {
		return nil, err
	}

	cycle, _, found := program.CycleByID(cycleID)
	if !found {
		return nil, domain.ErrCycleNotFound
	}
	session, idx, found := cycle.SessionByID(sessionID)
	if !found {
		return nil, domain.ErrSessionNotFound
	}

	var rescheduled domain.Cycle
	if propagate {
		var moved int
		rescheduled, moved, err = domain.RescheduleFutureSessions(cycle, sessionID, newDate, session.Date)
		if err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("session_id", sessionID.Hex()).
			Int("moved", moved).
			Msg("rescheduled session with cascade")
	} else {
		rescheduled = cycle.ReplaceSession(idx, session.WithDate(newDate))
	}

	updated, err := program.ReplaceCycle(rescheduled)
	if err != nil {
		return nil, err
	}

	if err := s.programRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &rescheduled, nil
}

// loadOwned fetches a program and verifies ownership.
func (s *programService) loadOwned(ctx context.Context, ownerID, programID primitive.ObjectID) (domain.Program, error) {
	if ownerID == primitive.NilObjectID || programID == primitive.NilObjectID {
		return domain.Program{}, errors.New("owner ID and program ID are required")
	}

	program, err := s.programRepo.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Program{}, ErrProgramNotFound
		}
		return domain.Program{}, err
	}
	if program.OwnerID != ownerID {
		return domain.Program{}, ErrProgramAccessDenied
	}
	return *program, nil
}
