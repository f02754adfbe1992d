package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/rag"
	"github.com/adl-legal/legald/internal/retrieval"
)

const testKey = "secret-key"

type fakeAnswerer struct {
	lastQuery rag.Query
	result    rag.Result
	events    []rag.StreamEvent
}

func (f *fakeAnswerer) Answer(ctx context.Context, q rag.Query) rag.Result {
	f.lastQuery = q
	return f.result
}

func (f *fakeAnswerer) AnswerStream(ctx context.Context, q rag.Query) <-chan rag.StreamEvent {
	f.lastQuery = q
	out := make(chan rag.StreamEvent, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out
}

func newTestServer(t *testing.T, svc *fakeAnswerer) *Server {
	t.Helper()
	s, err := NewServer(svc, zap.NewNop(), Config{ServiceKey: testKey})
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path, key, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(HeaderServiceKey, key)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeAnswerer{})

	rec := doRequest(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, &fakeAnswerer{})
	body := `{"query":"question"}`

	t.Run("missing key", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/v1/chat", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/v1/chat", "not-the-key", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health is open", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestChat(t *testing.T) {
	svc := &fakeAnswerer{result: rag.Result{
		Text: "الإجابة القانونية",
		Sources: []retrieval.Chunk{
			{ID: 1, Score: 0.9, Text: "المادة 543", SourceType: "law_article"},
		},
	}}
	s := newTestServer(t, svc)

	body := `{"query":"ما هي حقوق المستأجر؟","history":[{"role":"user","content":"مرحبا"},{"role":"assistant","content":"أهلاً"}]}`
	rec := doRequest(s, http.MethodPost, "/api/v1/chat", testKey, body)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "الإجابة القانونية", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, int64(1), resp.Sources[0].ID)

	assert.Equal(t, "ما هي حقوق المستأجر؟", svc.lastQuery.Text)
	require.Len(t, svc.lastQuery.History, 2)
	assert.Equal(t, "assistant", svc.lastQuery.History[1].Role)
}

func TestChat_GenerationFailureExposesError(t *testing.T) {
	svc := &fakeAnswerer{result: rag.Result{
		Text: "I apologize, but I am unable to process your request at this moment.",
		Sources: []retrieval.Chunk{
			{ID: 2, Score: 0.7, Text: "المادة 624", SourceType: "law_article"},
		},
		Err: errors.New("answer generation failed: provider down"),
	}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/api/v1/chat", testKey, `{"query":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, svc.result.Text, resp.Answer)
	assert.Equal(t, "answer generation failed: provider down", resp.Error)
	assert.Len(t, resp.Sources, 1, "sources retrieved before the failure are kept")
}

func TestChat_SuccessOmitsErrorField(t *testing.T) {
	svc := &fakeAnswerer{result: rag.Result{Text: "answer"}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/api/v1/chat", testKey, `{"query":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"error"`)
}

func TestChat_EmptySourcesSerializeAsArray(t *testing.T) {
	svc := &fakeAnswerer{result: rag.Result{Text: "answer"}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/api/v1/chat", testKey, `{"query":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sources":[]`)
}

func TestChat_BlankQueryRejected(t *testing.T) {
	s := newTestServer(t, &fakeAnswerer{})

	rec := doRequest(s, http.MethodPost, "/api/v1/chat", testKey, `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStream(t *testing.T) {
	svc := &fakeAnswerer{events: []rag.StreamEvent{
		{Type: rag.EventSources, Sources: []retrieval.Chunk{{ID: 4, Score: 0.8, Text: "نص", SourceType: "law_article"}}},
		{Type: rag.EventContent, Content: "الإجابة "},
		{Type: rag.EventContent, Content: "القانونية"},
	}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/api/v1/chat/stream", testKey, `{"query":"q"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var payloads []rag.StreamEvent
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev rag.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		payloads = append(payloads, ev)
	}

	require.Len(t, payloads, 3)
	assert.Equal(t, rag.EventSources, payloads[0].Type)
	require.Len(t, payloads[0].Sources, 1)
	assert.Equal(t, "الإجابة ", payloads[1].Content)
	assert.Equal(t, "القانونية", payloads[2].Content)
}

func TestTemplates(t *testing.T) {
	s := newTestServer(t, &fakeAnswerer{})

	rec := doRequest(s, http.MethodGet, "/api/v1/templates", testKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TemplatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Templates, 3)
	assert.Equal(t, "lease_agreement", resp.Templates[0].Key)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, zap.NewNop(), Config{ServiceKey: "k"})
	assert.Error(t, err)

	_, err = NewServer(&fakeAnswerer{}, nil, Config{ServiceKey: "k"})
	assert.Error(t, err)

	_, err = NewServer(&fakeAnswerer{}, zap.NewNop(), Config{})
	assert.Error(t, err)
}
