package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/furisto/console/api/auth"
	"github.com/furisto/console/delta"
	"github.com/furisto/console/history"
)

const testToken = "cn_test-token"

type stubExecutor struct {
	mu       sync.Mutex
	snippets [][]byte
}

func (s *stubExecutor) Execute(code []byte) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snippets = append(s.snippets, append([]byte(nil), code...))
	return uuid.New()
}

func (s *stubExecutor) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.snippets...)
}

func newTestHandler(t *testing.T) (*Handler, *history.Log, *stubExecutor) {
	t.Helper()
	log := history.New(history.DefaultCapacity, nil)
	exec := &stubExecutor{}
	handler := NewHandler(HandlerOptions{
		Log:       log,
		Executor:  exec,
		TokenHash: auth.HashToken(testToken),
		Token:     testToken,
	})
	return handler, log, exec
}

func do(handler *Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		target string
	}{
		{"missing token", http.MethodGet, "/history?len=10&version=0&begin=0"},
		{"wrong token", http.MethodGet, "/history?auth=cn_wrong&len=10&version=0&begin=0"},
		{"root", http.MethodGet, "/"},
		{"code", http.MethodPost, "/code"},
		{"clear", http.MethodPost, "/clear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(handler, tt.method, tt.target, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	handler, log, _ := newTestHandler(t)
	log.Append([]byte("hello world"))

	rec := do(handler, http.MethodGet, "/history?auth="+testToken+"&len=5&version=0&begin=0", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp, err := delta.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := delta.Response{Version: 0, Start: 0, Begin: 0, Part: []byte("hello")}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryEndpointRejectsBadParameters(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	tests := []struct {
		name  string
		query string
	}{
		{"missing len", "version=0&begin=0"},
		{"non numeric version", "len=10&version=x&begin=0"},
		{"negative begin", "len=10&version=0&begin=-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(handler, http.MethodGet, "/history?auth="+testToken+"&"+tt.query, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestCodeSubmission(t *testing.T) {
	handler, _, exec := newTestHandler(t)

	rec := do(handler, http.MethodPost, "/code?auth="+testToken, []byte("6 * 7"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	received := exec.received()
	if len(received) != 1 || string(received[0]) != "6 * 7" {
		t.Errorf("executor received %q, want one submission %q", received, "6 * 7")
	}
}

func TestOversizedSubmissionCreatesNoTask(t *testing.T) {
	handler, _, exec := newTestHandler(t)

	rec := do(handler, http.MethodPost, "/code?auth="+testToken, bytes.Repeat([]byte("x"), MaxSubmissionBytes+1))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if got := exec.received(); len(got) != 0 {
		t.Errorf("executor received %d submissions, want 0", len(got))
	}
}

func TestClearResetsLog(t *testing.T) {
	handler, log, _ := newTestHandler(t)
	log.Append([]byte("old history"))

	rec := do(handler, http.MethodPost, "/clear?auth="+testToken, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	version, start, buffer := log.Snapshot()
	if version != 1 || start != 0 || len(buffer) != 0 {
		t.Errorf("log = (version %d, start %d, %d bytes), want fresh epoch 1", version, start, len(buffer))
	}
}

func TestStaleVersionSyncsFromEpochOrigin(t *testing.T) {
	handler, log, _ := newTestHandler(t)
	log.Append([]byte("first epoch"))
	log.Reset()
	log.Append([]byte("second epoch"))

	rec := do(handler, http.MethodGet, "/history?auth="+testToken+"&len=100&version=0&begin=7", nil)

	resp, err := delta.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := delta.Response{Version: 1, Start: 0, Begin: 0, Part: []byte("second epoch")}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestRootPageEmbedsToken(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := do(handler, http.MethodGet, "/?auth="+testToken, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), testToken) {
		t.Error("root page does not embed the access token")
	}
}
