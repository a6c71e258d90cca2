package report

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appendiscan/backend/internal/apperr"
	"github.com/appendiscan/backend/internal/metrics"
)

type Handler struct {
	renderer *Renderer
}

func NewHandler(r *Renderer) *Handler {
	return &Handler{renderer: r}
}

// Generate renders the report named by the source query parameter.
// POST /generate-report/?source=quiz&data={...}
func (h *Handler) Generate(c *gin.Context) {
	source, ok := c.GetQuery("source")
	if !ok {
		apperr.Respond(c, apperr.Validation("missing query parameter", map[string]string{"source": "required"}))
		return
	}

	payload, err := ParsePayload(c.Query("data"))
	if err != nil {
		apperr.Respond(c, apperr.BadRequest(err.Error()))
		return
	}

	pdf, err := h.renderer.Render(source, payload)
	if errors.Is(err, ErrNotObject) {
		apperr.Respond(c, apperr.BadRequest(err.Error()))
		return
	}
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	metrics.RecordReport(source)

	c.Header("Content-Disposition", "attachment; filename=report.pdf")
	c.Data(http.StatusOK, "application/pdf", pdf)
}
