package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appendiscan/backend/internal/apperr"
	"github.com/appendiscan/backend/internal/metrics"
)

type Handler struct {
	engine Engine
}

func NewHandler(e Engine) *Handler {
	return &Handler{engine: e}
}

// Question is a pointer so an empty question is forwarded rather than
// rejected; only an absent or null one is a bad request.
type askRequest struct {
	Question *string `json:"question" binding:"required"`
}

// Ask forwards the question and returns the model's reply verbatim.
// POST /ask
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.BadRequest("invalid payload: "+err.Error()))
		return
	}

	answer, err := h.engine.Ask(c.Request.Context(), *req.Question)
	metrics.RecordChat(h.engine.Name(), err)
	if err != nil {
		apperr.Respond(c, apperr.Upstream("chat completion", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": answer})
}
