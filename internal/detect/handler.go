package detect

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/appendiscan/backend/internal/apperr"
)

// Archiver keeps a copy of uploaded images. It is optional.
type Archiver interface {
	Put(ctx context.Context, prefix, filename string, data []byte, contentType string) (string, error)
}

type Handler struct {
	gateway *Gateway
	archive Archiver
}

// NewHandler wires the gateway; archive may be nil.
func NewHandler(g *Gateway, archive Archiver) *Handler {
	return &Handler{gateway: g, archive: archive}
}

// Predict runs the uploaded image through both models.
// POST /predict (multipart field "file")
func (h *Handler) Predict(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		apperr.Respond(c, apperr.Validation("missing image upload", map[string]string{"file": "required"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		apperr.Respond(c, apperr.BadRequest("cannot open upload: "+err.Error()))
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		apperr.Respond(c, apperr.BadRequest("cannot read upload: "+err.Error()))
		return
	}

	img, format, err := DecodeImage(data)
	if err != nil {
		apperr.Respond(c, apperr.BadRequest(err.Error()))
		return
	}

	res, err := h.gateway.Predict(c.Request.Context(), img)
	if err != nil {
		apperr.Respond(c, apperr.Wrap(err, "detection failed"))
		return
	}

	if h.archive != nil {
		key, err := h.archive.Put(c.Request.Context(), "ultrasound", fh.Filename, data, "image/"+format)
		if err != nil {
			log.WithError(err).Warn("ultrasound archive failed")
		} else {
			log.WithField("key", key).Debug("ultrasound archived")
		}
	}

	c.JSON(http.StatusOK, res)
}
