package ingress

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeQueue struct {
	got [][]byte
}

func (f *fakeQueue) Enqueue(body []byte) {
	f.got = append(f.got, body)
}

func TestHandleWebhookEnqueuesUnescapedBody(t *testing.T) {
	q := &fakeQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := handleWebhook(q, logger)

	body := `{"update_id":1,"message":{"message_id":2,"chat":{"id":100,"type":"group"},"text":"caf` + "\\u00e9" + `"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(q.got) != 1 {
		t.Fatalf("expected 1 enqueued body, got %d", len(q.got))
	}
	if !strings.Contains(string(q.got[0]), "café") {
		t.Fatalf("expected unescaped body, got %q", q.got[0])
	}
}

func TestHandleWebhookRejectsNonPost(t *testing.T) {
	q := &fakeQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := handleWebhook(q, logger)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	if len(q.got) != 0 {
		t.Fatal("expected no enqueue on rejected method")
	}
}

func TestHandleWebhookAccepts200OnMalformedJSON(t *testing.T) {
	// Ingress never decodes JSON — a malformed body is still a complete
	// body, so it is enqueued and acknowledged 200. Dropping it is the
	// worker's job.
	q := &fakeQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := handleWebhook(q, logger)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(q.got) != 1 {
		t.Fatal("expected malformed body to still be enqueued")
	}
}
