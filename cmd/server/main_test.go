package main

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/appendiscan/backend/internal/chat"
	"github.com/appendiscan/backend/internal/detect"
	"github.com/appendiscan/backend/internal/quicktest"
	"github.com/appendiscan/backend/internal/report"
	"github.com/appendiscan/backend/internal/store"
)

type fakeDetector struct{ labels []string }

func (f fakeDetector) Name() string { return "fake" }

func (f fakeDetector) Detect(context.Context, image.Image) ([]string, error) {
	return f.labels, nil
}

// feverClassifier flags appendicitis whenever the first column is set.
type feverClassifier struct{}

func (feverClassifier) Predict(row []float64) (int, error) {
	return int(row[0]), nil
}

type fakeEngine struct {
	answer string
	err    error
}

func (f fakeEngine) Name() string { return "fake" }

func (f fakeEngine) Ask(context.Context, string) (string, error) {
	return f.answer, f.err
}

func newTestRouter(t *testing.T, st store.Store, engine chat.Engine) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	schema, err := quicktest.NewSchema([]string{"Fever_yes", "Fever_no"})
	if err != nil {
		t.Fatal(err)
	}
	predictor, err := quicktest.NewPredictor(schema, feverClassifier{})
	if err != nil {
		t.Fatal(err)
	}

	return setupRouter(services{
		store:     st,
		detect:    detect.NewHandler(detect.NewGateway(fakeDetector{}, fakeDetector{labels: []string{"Appendicitis"}}), nil),
		quicktest: quicktest.NewHandler(st, predictor),
		report:    report.NewHandler(report.NewRenderer()),
		chat:      chat.NewHandler(engine),
	}, 1<<20)
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, target, nil)
	} else {
		req, _ = http.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

const quickTestBody = `{
	"Sex": "female",
	"Fever": "yes",
	"MigratoryPain": "yes",
	"IpsilateralReboundTenderness": "no",
	"ContralateralReboundTenderness": "no",
	"LowerRightAbdPain": "yes",
	"CoughingPain": "no",
	"Nausea": "yes",
	"LossofAppetite": "yes"
}`

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "DATABASE_URL", "CHAT_PROVIDER", "GEMINI_API_KEY",
		"LOG_FORMAT", "MAX_BODY_BYTES", "ARCHIVE_ENABLED", "DETECT_CONFIDENCE", "DETECT_IOU",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "CHAT_RATE_LIMIT", "CHAT_RATE_BURST",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("GROQ_API_KEY", "gsk-test")
}

func TestLoadConfigUsesDefaults(t *testing.T) {
	setBaseEnv(t)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.StoreDriver != storeFirestore || cfg.FirebaseCredentials != "key.json" {
		t.Fatalf("expected firestore with key.json, got %s %s", cfg.StoreDriver, cfg.FirebaseCredentials)
	}
	if cfg.Collection != store.DefaultCollection {
		t.Fatalf("expected collection %s, got %s", store.DefaultCollection, cfg.Collection)
	}
	if cfg.ChatProvider != chat.ProviderGroq {
		t.Fatalf("expected groq provider, got %s", cfg.ChatProvider)
	}
	if cfg.ChatRateLimit != 0 {
		t.Fatalf("expected chat throttling off by default, got %v", cfg.ChatRateLimit)
	}
	if cfg.MaxBodyBytes != 20<<20 {
		t.Fatalf("expected 20MiB body limit, got %d", cfg.MaxBodyBytes)
	}
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("DETECT_CONFIDENCE", "0.4")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.StoreDriver != storeMemory || cfg.DetectConfidence != 0.4 {
		t.Fatalf("environment not applied: %+v", cfg)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"groq without key", map[string]string{"GROQ_API_KEY": ""}},
		{"gemini without key", map[string]string{"CHAT_PROVIDER": "gemini"}},
		{"unknown provider", map[string]string{"CHAT_PROVIDER": "openai"}},
		{"archive without minio", map[string]string{"ARCHIVE_ENABLED": "true"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"confidence out of range", map[string]string{"DETECT_CONFIDENCE": "1.5"}},
		{"rate limit without burst", map[string]string{"CHAT_RATE_LIMIT": "2", "CHAT_RATE_BURST": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, store.NewMemory(), fakeEngine{})

	w := serve(router, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterReadyz(t *testing.T) {
	st := store.NewMemory()
	router := newTestRouter(t, st, fakeEngine{})

	if w := serve(router, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	st.FailWith(errors.New("deadline exceeded"))
	w := serve(router, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "degraded") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterQuickTestFlow(t *testing.T) {
	st := store.NewMemory()
	router := newTestRouter(t, st, fakeEngine{})

	w := serve(router, http.MethodPost, "/submit_quicktest", quickTestBody)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "document_id") {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}

	w = serve(router, http.MethodPost, "/predict_quicktest", quickTestBody)
	if w.Code != http.StatusOK || w.Body.String() != `{"diagnosis":"Appendicitis"}` {
		t.Fatalf("predict: %d %s", w.Code, w.Body.String())
	}
	if st.Len() != 2 {
		t.Fatalf("expected 2 stored documents, got %d", st.Len())
	}

	w = serve(router, http.MethodGet, "/quicktest_stats", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":2`) {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
}

func TestRouterAsk(t *testing.T) {
	router := newTestRouter(t, store.NewMemory(), fakeEngine{answer: "Seek care."})
	w := serve(router, http.MethodPost, "/ask", `{"question":"Is RLQ pain serious?"}`)
	if w.Code != http.StatusOK || w.Body.String() != `{"response":"Seek care."}` {
		t.Fatalf("ask: %d %s", w.Code, w.Body.String())
	}

	router = newTestRouter(t, store.NewMemory(), fakeEngine{err: errors.New("rate limited")})
	if w := serve(router, http.MethodPost, "/ask", `{"question":"hi"}`); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestRouterGenerateReport(t *testing.T) {
	router := newTestRouter(t, store.NewMemory(), fakeEngine{})
	w := serve(router, http.MethodPost, "/generate-report/?source=quiz&data="+url.QueryEscape(`{"Fever":"Yes"}`), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Fatal("body is not a PDF")
	}
}

func TestRouterPredictRequiresUpload(t *testing.T) {
	router := newTestRouter(t, store.NewMemory(), fakeEngine{})
	if w := serve(router, http.MethodPost, "/predict", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRouterCORSAllowsAnyOriginWithCredentials(t *testing.T) {
	router := newTestRouter(t, store.NewMemory(), fakeEngine{})

	for _, path := range []string{"/ask", "/predict_quicktest", "/submit_quicktest"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "https://app.example.org")
			req.Header.Set("Access-Control-Request-Method", "POST")
			req.Header.Set("Access-Control-Request-Headers", "content-type,x-request-id")
			router.ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Fatalf("expected 204 preflight, got %d", w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
				t.Fatalf("expected origin echoed, got %q", got)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
				t.Fatalf("expected credentials allowed, got %q", got)
			}
			got := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
			if got == "*" || !strings.Contains(got, "content-type") || !strings.Contains(got, "x-request-id") {
				t.Fatalf("expected requested headers listed, got %q", got)
			}
		})
	}
}

func TestRouterCORSWithoutRequestedHeaders(t *testing.T) {
	router := newTestRouter(t, store.NewMemory(), fakeEngine{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "" {
		t.Fatalf("expected no allow-headers, got %q", got)
	}
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(t, store.NewMemory(), fakeEngine{})
	serve(router, http.MethodGet, "/healthz", "")

	w := serve(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestChatRateLimitPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/ask", newIPRateLimiter(0.001, 1).middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	ask := func(addr string) int {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/ask", nil)
		req.RemoteAddr = addr
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := ask("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := ask("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}
	if code := ask("10.0.0.2:5000"); code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", code)
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	l := newIPRateLimiter(0.001, 1)
	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	if !l.limiter("10.0.0.1").Allow() {
		t.Fatal("first request from 10.0.0.1 should pass")
	}
	if l.limiter("10.0.0.1").Allow() {
		t.Fatal("second request from 10.0.0.1 should be throttled")
	}

	clock = clock.Add(5 * time.Minute)
	l.limiter("10.0.0.2")
	if got := l.size(); got != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", got)
	}

	clock = clock.Add(6 * time.Minute)
	l.limiter("10.0.0.2")
	if got := l.size(); got != 1 {
		t.Fatalf("expected idle client evicted, %d tracked", got)
	}

	// An evicted client starts over with a full bucket.
	if !l.limiter("10.0.0.1").Allow() {
		t.Fatal("evicted client should get a fresh bucket")
	}
}

func TestNilRateLimiterAllowsAll(t *testing.T) {
	var l *ipRateLimiter
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/ask", l.middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/ask", nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("12345"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("01234567890"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

func TestConfigureLogging(t *testing.T) {
	if err := configureLogging("debug", "json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := configureLogging("loud", "text"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	_ = configureLogging("info", "text")
}
