package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
)

func TestGroqAskSendsFixedPromptAndSampling(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Appendicitis is inflammation of the appendix."}}]}`))
	}))
	defer srv.Close()

	g := NewGroq("test-key", "", srv.URL).WithHTTPClient(srv.Client())
	answer, err := g.Ask(context.Background(), "What is appendicitis?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Appendicitis is inflammation of the appendix." {
		t.Fatalf("unexpected answer %q", answer)
	}

	want := completionRequest{
		Model: DefaultGroqModel,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: "What is appendicitis?"},
		},
		Temperature: 1,
		MaxTokens:   500,
		TopP:        1,
		Stream:      false,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestGroqAskErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"upstream error", http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, "groq 429"},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyCompletion.Error()},
		{"bad json", http.StatusOK, `not json`, "groq decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewGroq("k", "m", srv.URL).Ask(context.Background(), "q")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestGroqRequiresKey(t *testing.T) {
	if _, err := NewGroq("", "", "").Ask(context.Background(), "q"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Options{Provider: "bard"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	e, err := New(context.Background(), Options{Provider: ProviderGroq, GroqAPIKey: "k"})
	if err != nil || e.Name() != ProviderGroq {
		t.Fatalf("expected groq engine, got %v, %v", e, err)
	}
	if _, err := New(context.Background(), Options{Provider: ProviderGemini}); err == nil {
		t.Fatal("expected error for gemini without key")
	}
}

type fakeEngine struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Ask(_ context.Context, q string) (string, error) {
	f.asked = append(f.asked, q)
	return f.answer, f.err
}

func setupRouter(e Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/ask", NewHandler(e).Ask)
	return router
}

func ask(router http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestAskHandler(t *testing.T) {
	eng := &fakeEngine{answer: "Sorry, my expertise is limited to appendicitis."}
	router := setupRouter(eng)

	for i := 0; i < 2; i++ {
		w := ask(router, `{"question":"Who won the match?"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if diff := cmp.Diff(`{"response":"Sorry, my expertise is limited to appendicitis."}`, w.Body.String()); diff != "" {
			t.Fatalf("body mismatch (-want +got):\n%s", diff)
		}
	}
	if len(eng.asked) != 2 {
		t.Fatalf("expected every call to reach the engine, got %d", len(eng.asked))
	}
}

func TestAskHandlerErrors(t *testing.T) {
	w := ask(setupRouter(&fakeEngine{}), `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing question, got %d", w.Code)
	}

	w = ask(setupRouter(&fakeEngine{}), `{"question":null}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for null question, got %d", w.Code)
	}

	w = ask(setupRouter(&fakeEngine{err: errors.New("timeout")}), `{"question":"q"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream failure, got %d", w.Code)
	}
}

func TestAskHandlerForwardsEmptyQuestion(t *testing.T) {
	eng := &fakeEngine{answer: "Please ask about appendicitis."}
	w := ask(setupRouter(eng), `{"question":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if diff := cmp.Diff([]string{""}, eng.asked); diff != "" {
		t.Fatalf("forwarded questions mismatch (-want +got):\n%s", diff)
	}
}
