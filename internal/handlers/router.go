package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/assessment-delivery/internal/services"
	"github.com/edupulse/assessment-delivery/internal/utils"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
}

func NewHandlerManager(
	deliveryService services.DeliveryService,
	exportService services.ExportService,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(deliveryService, exportService, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.POST("/:id/resume", hm.sessionHandler.ResumeSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)

			// Delivery
			sessions.GET("/:id/questions", hm.sessionHandler.GetQuestions)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)

			// Answer collection
			sessions.PUT("/:id/answers/:question_id", hm.sessionHandler.SaveAnswer)
			sessions.GET("/:id/answers/:question_id", hm.sessionHandler.GetAnswer)
			sessions.GET("/:id/questions/:question_id/matching", hm.sessionHandler.GetMatchingPresentation)
			sessions.GET("/:id/questions/:question_id/ordering", hm.sessionHandler.GetOrderingPresentation)
			sessions.POST("/:id/questions/:question_id/ordering/move", hm.sessionHandler.MoveOrderingItem)
			sessions.POST("/:id/questions/:question_id/numeric/step", hm.sessionHandler.StepNumeric)

			// Submission and review
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
			sessions.GET("/:id/summary", hm.sessionHandler.GetSummary)
			sessions.GET("/:id/export", hm.sessionHandler.ExportSession)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "assessment-delivery",
		})
	})
}
