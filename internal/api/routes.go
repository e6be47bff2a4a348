package api

import (
	"alcyxob/progression/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires all handlers onto the router.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	programService service.ProgramService,
	calendarService service.CalendarService,
) {
	authHandler := NewAuthHandler(authService)
	programHandler := NewProgramHandler(programService, calendarService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		programs := protected.Group("/programs")
		{
			programs.POST("", programHandler.CreateProgram)
			programs.GET("", programHandler.ListPrograms)
			programs.GET("/:id", programHandler.GetProgram)
			programs.DELETE("/:id", programHandler.DeleteProgram)

			programs.POST("/:id/refresh-activation", programHandler.RefreshActivation)
			programs.POST("/:id/complete-current-cycle", programHandler.CompleteCurrentCycle)

			cycles := programs.Group("/:id/cycles")
			{
				cycles.POST("", programHandler.CreateCycle)
				cycles.GET("/overlap", programHandler.CheckCycleOverlap)
				cycles.POST("/:cycleId/activate", programHandler.ActivateCycle)
				cycles.POST("/:cycleId/sessions/generate", programHandler.GenerateSessions)
				cycles.POST("/:cycleId/sessions/:sessionId/complete", programHandler.CompleteSession)
				cycles.PATCH("/:cycleId/sessions/:sessionId", programHandler.RescheduleSession)
				cycles.GET("/:cycleId/calendar.ics", programHandler.ExportCycleCalendar)
			}
		}
	}
}
