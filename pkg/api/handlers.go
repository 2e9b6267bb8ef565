package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navarrastar/contactsheet/pkg/middleware"
	"github.com/navarrastar/contactsheet/pkg/models"
	"github.com/navarrastar/contactsheet/pkg/services"
	"github.com/navarrastar/contactsheet/pkg/sheet"
	"github.com/navarrastar/contactsheet/pkg/validation"
)

// Messages returned to the submitting client.
const (
	MessageSaved         = "Data saved successfully! Row #%d"
	MessageSaveFailed    = "Failed to save data. Please try again later."
	MessageBadRequest    = "Invalid request body"
	MessageInternalError = "Internal server error"
	MessageHealthy       = "Contact sheet service is working correctly!"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	submissionService services.SubmissionService
	sheetName         string
	backend           string
	now               func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(submissionService services.SubmissionService, sheetName, backend string) *Handlers {
	return &Handlers{
		submissionService: submissionService,
		sheetName:         sheetName,
		backend:           backend,
		now:               time.Now,
	}
}

// HealthCheck is the status endpoint: it reports the service is reachable and
// which table it writes to.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    models.StatusSuccess,
		"message":   MessageHealthy,
		"timestamp": models.ISOTimestamp(h.now()),
		"sheetName": h.sheetName,
		"backend":   h.backend,
	})
}

// HandleSubmission binds a JSON or form-encoded submission and runs it
// through the ingestion pipeline.
func (h *Handlers) HandleSubmission(c *gin.Context) {
	var data models.Submission
	if err := c.ShouldBind(&data); err != nil {
		slog.Warn("Error binding submission", "id", middleware.RequestID(c), "error", err)
		h.fail(c, http.StatusBadRequest, MessageBadRequest)
		return
	}

	receipt, err := h.submissionService.Ingest(c.Request.Context(), data)
	if err != nil {
		var ve *validation.Error
		var pe *sheet.PersistenceError
		switch {
		case errors.As(err, &ve):
			h.fail(c, http.StatusBadRequest, ve.Error())
		case errors.As(err, &pe):
			_ = c.Error(err)
			h.fail(c, http.StatusInternalServerError, MessageSaveFailed)
		default:
			_ = c.Error(err)
			h.fail(c, http.StatusInternalServerError, MessageInternalError)
		}
		return
	}

	c.JSON(http.StatusOK, models.SubmissionResponse{
		Status:    models.StatusSuccess,
		Message:   fmt.Sprintf(MessageSaved, receipt.Row),
		RowNumber: receipt.Row,
		Timestamp: models.ISOTimestamp(receipt.Timestamp),
	})
}

func (h *Handlers) fail(c *gin.Context, code int, message string) {
	c.JSON(code, models.SubmissionResponse{
		Status:    models.StatusError,
		Message:   message,
		Timestamp: models.ISOTimestamp(h.now()),
	})
}

// RegisterRoutes mounts the handlers on r.
func (h *Handlers) RegisterRoutes(r gin.IRoutes) {
	r.POST("/submit", h.HandleSubmission)
	r.POST("/", h.HandleSubmission)
	r.GET("/", h.HealthCheck)
	r.GET("/health", h.HealthCheck)
}
