package api

import (
	"alcyxob/progression/internal/domain"
	"alcyxob/progression/internal/service"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

// ProgramHandler holds the program and calendar service dependencies.
type ProgramHandler struct {
	programService  service.ProgramService
	calendarService service.CalendarService
}

// NewProgramHandler creates a new ProgramHandler.
func NewProgramHandler(programService service.ProgramService, calendarService service.CalendarService) *ProgramHandler {
	return &ProgramHandler{
		programService:  programService,
		calendarService: calendarService,
	}
}

// --- Request/Response Structs ---

type CreateProgramRequest struct {
	Name              string             `json:"name" binding:"required"`
	Description       string             `json:"description"`
	Type              domain.ProgramType `json:"type" binding:"omitempty,oneof=strength hypertrophy endurance general"`
	Difficulty        domain.Difficulty  `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced"`
	Tags              []string           `json:"tags"`
	DefaultRecurrence *domain.Recurrence `json:"defaultRecurrence"`
}

type CreateCycleRequest struct {
	StartDate  string             `json:"startDate" binding:"required"`
	EndDate    *string            `json:"endDate"`
	Recurrence *domain.Recurrence `json:"recurrence"`
}

type RescheduleSessionRequest struct {
	Date      string `json:"date" binding:"required"`
	Propagate bool   `json:"propagate"`
}

// SessionResponse is the wire form of a scheduled session.
type SessionResponse struct {
	ID        string `json:"id"`
	CycleID   string `json:"cycleId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

// CycleResponse is the wire form of a cycle. EndDate is absent for
// open-ended cycles; the soft range-check default is never exposed.
type CycleResponse struct {
	ID          string             `json:"id"`
	ProgramID   string             `json:"programId"`
	CycleNumber int                `json:"cycleNumber"`
	StartDate   string             `json:"startDate"`
	EndDate     *string            `json:"endDate,omitempty"`
	Active      bool               `json:"active"`
	Completed   bool               `json:"completed"`
	Recurrence  *domain.Recurrence `json:"recurrence,omitempty"`
	Sessions    []SessionResponse  `json:"sessions"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type ProgramResponse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Type              domain.ProgramType `json:"type,omitempty"`
	Difficulty        domain.Difficulty  `json:"difficulty,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
	DefaultRecurrence *domain.Recurrence `json:"defaultRecurrence,omitempty"`
	Cycles            []CycleResponse    `json:"cycles"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// --- Handler Methods ---

// CreateProgram creates a new program owned by the authenticated user.
func (h *ProgramHandler) CreateProgram(c *gin.Context) {
	ownerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	var req CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	program, err := h.programService.CreateProgram(c.Request.Context(), ownerID, service.CreateProgramInput{
		Name:              req.Name,
		Description:       req.Description,
		Type:              req.Type,
		Difficulty:        req.Difficulty,
		Tags:              req.Tags,
		DefaultRecurrence: req.DefaultRecurrence,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MapProgramToResponse(program))
}

// ListPrograms returns the authenticated user's programs.
func (h *ProgramHandler) ListPrograms(c *gin.Context) {
	ownerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	programs, err := h.programService.ListPrograms(c.Request.Context(), ownerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	responses := make([]ProgramResponse, len(programs))
	for i := range programs {
		responses[i] = MapProgramToResponse(&programs[i])
	}
	c.JSON(http.StatusOK, responses)
}

// GetProgram returns one program by ID.
func (h *ProgramHandler) GetProgram(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}

	program, err := h.programService.GetProgram(c.Request.Context(), ownerID, programID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProgramToResponse(program))
}

// DeleteProgram removes a program.
func (h *ProgramHandler) DeleteProgram(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}

	if err := h.programService.DeleteProgram(c.Request.Context(), ownerID, programID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateCycle appends a new cycle to a program.
func (h *ProgramHandler) CreateCycle(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}

	var req CreateCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "startDate must be formatted YYYY-MM-DD")
		return
	}
	var endDate *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "endDate must be formatted YYYY-MM-DD")
			return
		}
		endDate = &parsed
	}

	cycle, err := h.programService.CreateCycle(c.Request.Context(), ownerID, programID, domain.CycleParams{
		StartDate:  startDate,
		EndDate:    endDate,
		Recurrence: req.Recurrence,
	}, time.Now())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapCycleToResponse(*cycle))
}

// CheckCycleOverlap is a read-only probe over the same predicate CreateCycle
// validates with, so a UI can warn before submitting.
func (h *ProgramHandler) CheckCycleOverlap(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}

	start, err := time.Parse(dateLayout, c.Query("start"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "start query parameter must be formatted YYYY-MM-DD")
		return
	}
	var end *time.Time
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "end query parameter must be formatted YYYY-MM-DD")
			return
		}
		end = &parsed
	}

	overlaps, err := h.programService.WouldCycleOverlap(c.Request.Context(), ownerID, programID, start, end)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overlaps": overlaps})
}

// ActivateCycle starts the target cycle and stops all others.
func (h *ProgramHandler) ActivateCycle(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}
	cycleID, ok := h.pathObjectID(c, "cycleId")
	if !ok {
		return
	}

	asOf, ok := h.asOfParam(c)
	if !ok {
		return
	}

	program, err := h.programService.ActivateCycle(c.Request.Context(), ownerID, programID, cycleID, asOf)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProgramToResponse(program))
}

// RefreshActivation reconciles every cycle's active flag from date ranges.
func (h *ProgramHandler) RefreshActivation(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}

	asOf, ok := h.asOfParam(c)
	if !ok {
		return
	}

	program, err := h.programService.RefreshCycleActivation(c.Request.Context(), ownerID, programID, asOf)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProgramToResponse(program))
}

// CompleteCurrentCycle completes the program's active cycle, if any.
func (h *ProgramHandler) CompleteCurrentCycle(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}

	asOf, ok := h.asOfParam(c)
	if !ok {
		return
	}

	program, err := h.programService.CompleteCurrentCycle(c.Request.Context(), ownerID, programID, asOf)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProgramToResponse(program))
}

// GenerateSessions expands the cycle's recurrence into scheduled sessions.
func (h *ProgramHandler) GenerateSessions(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}
	cycleID, ok := h.pathObjectID(c, "cycleId")
	if !ok {
		return
	}

	replaceExisting := c.Query("replace") == "true"

	cycle, err := h.programService.GenerateScheduledSessions(c.Request.Context(), ownerID, programID, cycleID, replaceExisting)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapCycleToResponse(*cycle))
}

// CompleteSession marks one session as completed.
func (h *ProgramHandler) CompleteSession(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}
	cycleID, ok := h.pathObjectID(c, "cycleId")
	if !ok {
		return
	}
	sessionID, ok := h.pathObjectID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.programService.CompleteSession(c.Request.Context(), ownerID, programID, cycleID, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapSessionToResponse(*session))
}

// RescheduleSession moves a session to a new date, optionally cascading the
// shift to later, not-yet-completed sessions of the same cycle.
func (h *ProgramHandler) RescheduleSession(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}
	cycleID, ok := h.pathObjectID(c, "cycleId")
	if !ok {
		return
	}
	sessionID, ok := h.pathObjectID(c, "sessionId")
	if !ok {
		return
	}

	var req RescheduleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	newDate, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	cycle, err := h.programService.RescheduleSession(c.Request.Context(), ownerID, programID, cycleID, sessionID, newDate, req.Propagate)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapCycleToResponse(*cycle))
}

// ExportCycleCalendar serves the cycle's schedule as an iCalendar document.
func (h *ProgramHandler) ExportCycleCalendar(c *gin.Context) {
	ownerID, programID, ok := h.ownerAndProgramID(c)
	if !ok {
		return
	}
	cycleID, ok := h.pathObjectID(c, "cycleId")
	if !ok {
		return
	}

	program, err := h.programService.GetProgram(c.Request.Context(), ownerID, programID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	cycle, _, found := program.CycleByID(cycleID)
	if !found {
		abortWithError(c, http.StatusNotFound, domain.ErrCycleNotFound.Error())
		return
	}

	ics, err := h.calendarService.RenderCycle(program, cycle)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to render calendar")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=cycle-%d.ics", cycle.CycleNumber))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", ics)
}

// --- Helpers ---

func (h *ProgramHandler) ownerAndProgramID(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	ownerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	programID, ok := h.pathObjectID(c, "id")
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return ownerID, programID, true
}

func (h *ProgramHandler) pathObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", param))
		return primitive.NilObjectID, false
	}
	return id, true
}

// asOfParam reads the optional asOf query parameter, defaulting to now.
// This is the boundary where the real clock enters; everything below takes
// the date explicitly.
func (h *ProgramHandler) asOfParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("asOf")
	if raw == "" {
		return time.Now(), true
	}
	asOf, err := time.Parse(dateLayout, raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "asOf query parameter must be formatted YYYY-MM-DD")
		return time.Time{}, false
	}
	return asOf, true
}

func (h *ProgramHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProgramNotFound),
		errors.Is(err, domain.ErrCycleNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrProgramAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrCycleOverlap),
		errors.Is(err, domain.ErrCycleCompleted):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrDateOutOfRange):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// --- Mappers ---

func MapSessionToResponse(session domain.Session) SessionResponse {
	return SessionResponse{
		ID:        session.ID.Hex(),
		CycleID:   session.CycleID.Hex(),
		Date:      session.Date.Format(dateLayout),
		Completed: session.Completed,
		Notes:     session.Notes,
	}
}

func MapCycleToResponse(cycle domain.Cycle) CycleResponse {
	resp := CycleResponse{
		ID:          cycle.ID.Hex(),
		ProgramID:   cycle.ProgramID.Hex(),
		CycleNumber: cycle.CycleNumber,
		StartDate:   cycle.StartDate.Format(dateLayout),
		Active:      cycle.Active,
		Completed:   cycle.Completed,
		Recurrence:  cycle.Recurrence,
		Sessions:    make([]SessionResponse, len(cycle.Sessions)),
		CreatedAt:   cycle.CreatedAt,
	}
	if cycle.EndDate != nil {
		end := cycle.EndDate.Format(dateLayout)
		resp.EndDate = &end
	}
	for i, session := range cycle.Sessions {
		resp.Sessions[i] = MapSessionToResponse(session)
	}
	return resp
}

func MapProgramToResponse(program *domain.Program) ProgramResponse {
	if program == nil {
		return ProgramResponse{}
	}
	resp := ProgramResponse{
		ID:                program.ID.Hex(),
		Name:              program.Name,
		Description:       program.Description,
		Type:              program.Type,
		Difficulty:        program.Difficulty,
		Tags:              program.Tags,
		DefaultRecurrence: program.DefaultRecurrence,
		Cycles:            make([]CycleResponse, len(program.Cycles)),
		CreatedAt:         program.CreatedAt,
		UpdatedAt:         program.UpdatedAt,
	}
	for i, cycle := range program.Cycles {
		resp.Cycles[i] = MapCycleToResponse(cycle)
	}
	return resp
}
