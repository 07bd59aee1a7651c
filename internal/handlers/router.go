package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	streamHandler  *StreamHandler
}

func NewHandlerManager(
	sessions *services.SessionManager,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(sessions, validator, logger),
		streamHandler:  NewStreamHandler(sessions, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-session-service",
		})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/levels", hm.sessionHandler.ListLevels)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.CreateSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.DeleteSession)

			// Lifecycle
			sessions.POST("/:id/retry", hm.sessionHandler.RetrySession)
			sessions.POST("/:id/start", hm.sessionHandler.StartSession)
			sessions.POST("/:id/finish", hm.sessionHandler.FinishSession)

			// In-progress interaction
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)
			sessions.PUT("/:id/answer", hm.sessionHandler.SaveAnswer)
			sessions.GET("/:id/audio/:part/:scenario", hm.sessionHandler.GetAudio)
			sessions.GET("/:id/stream", hm.streamHandler.Stream)

			// Results
			sessions.GET("/:id/result", hm.sessionHandler.GetResult)
			sessions.GET("/:id/review.xlsx", hm.sessionHandler.ExportReview)
		}
	}
}
