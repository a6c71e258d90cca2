package quicktest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/appendiscan/backend/internal/apperr"
	"github.com/appendiscan/backend/internal/metrics"
	"github.com/appendiscan/backend/internal/store"
)

type Handler struct {
	store     store.Store
	predictor *Predictor
}

func NewHandler(s store.Store, p *Predictor) *Handler {
	return &Handler{store: s, predictor: p}
}

// Submit stores the questionnaire as-is.
// POST /submit_quicktest
func (h *Handler) Submit(c *gin.Context) {
	rec, ok := bindRecord(c)
	if !ok {
		return
	}

	id, err := h.store.Add(c.Request.Context(), rec.Document())
	if err != nil {
		apperr.Respond(c, apperr.Upstream("document store", err))
		return
	}
	metrics.RecordQuickTestStored("submit")

	c.JSON(http.StatusOK, gin.H{
		"message":     "Data successfully stored!",
		"document_id": id,
	})
}

// Predict classifies the questionnaire and stores it with its diagnosis.
// POST /predict_quicktest
func (h *Handler) Predict(c *gin.Context) {
	rec, ok := bindRecord(c)
	if !ok {
		return
	}

	diagnosis, err := h.predictor.Diagnose(rec)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	metrics.RecordDiagnosis(diagnosis)

	doc := rec.Document()
	doc["diagnosis"] = diagnosis
	id, err := h.store.Add(c.Request.Context(), doc)
	if err != nil {
		apperr.Respond(c, apperr.Upstream("document store", err))
		return
	}
	metrics.RecordQuickTestStored("predict")
	log.WithFields(log.Fields{"document_id": id, "diagnosis": diagnosis}).Info("quick test classified")

	c.JSON(http.StatusOK, gin.H{"diagnosis": diagnosis})
}

// Stats aggregates every stored questionnaire.
// GET /quicktest_stats
func (h *Handler) Stats(c *gin.Context) {
	records, err := h.store.List(c.Request.Context())
	if err != nil {
		apperr.Respond(c, apperr.Upstream("document store", err))
		return
	}
	c.JSON(http.StatusOK, Aggregate(records))
}

func bindRecord(c *gin.Context) (SymptomRecord, bool) {
	var payload symptomPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			apperr.Respond(c, apperr.Validation("incomplete symptom record", details))
			return SymptomRecord{}, false
		}
		apperr.Respond(c, apperr.BadRequest("invalid payload: "+err.Error()))
		return SymptomRecord{}, false
	}
	return payload.record(), true
}
