package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-csp/internal/csp"
	"github.com/redmonkez12/go-csp/internal/metrics"
)

type failingStore struct{}

func (failingStore) Save(context.Context, *Violation) error { return errors.New("boom") }
func (failingStore) Recent(context.Context, int) ([]Violation, error) {
	return nil, errors.New("boom")
}

type fixedParser struct{ name string }

func (p fixedParser) Parse(string) *csp.Browser { return &csp.Browser{Name: p.name} }

func newTestHandler(store Store) (*Handler, *metrics.Metrics) {
	m := metrics.New()
	return NewHandler(store, fixedParser{"Firefox"}, m, 100), m
}

func submit(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/csp/report", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/csp-report")
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	h.Submit(rec, req)
	return rec
}

func TestSubmit(t *testing.T) {
	store := NewMemoryStore(10, time.Minute)
	h, m := newTestHandler(store)

	rec := submit(h, sampleReport)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = submit(h, sampleReport)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Firefox", stored[0].Browser)
	assert.Equal(t, "test-agent", stored[0].UserAgent)
	assert.False(t, stored[0].ReceivedAt.IsZero())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ViolationReports.WithLabelValues("script-src")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicateReports))
}

func TestSubmitBoundsDirectiveLabels(t *testing.T) {
	h, m := newTestHandler(NewMemoryStore(100, time.Minute))

	for i := 0; i < 50; i++ {
		body := fmt.Sprintf(`{"csp-report": {"document-uri": "https://example.com/", "effective-directive": "junk-%d"}}`, i)
		require.Equal(t, http.StatusNoContent, submit(h, body).Code)
	}
	require.Equal(t, http.StatusNoContent, submit(h, sampleReport).Code)

	assert.Equal(t, 2, testutil.CollectAndCount(m.ViolationReports))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.ViolationReports.WithLabelValues("other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ViolationReports.WithLabelValues("script-src")))
}

func TestSubmitRejects(t *testing.T) {
	h, _ := newTestHandler(NewMemoryStore(10, time.Minute))

	rec := submit(h, `{"csp-report": {}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REPORT")

	big := `{"csp-report": {"document-uri": "` + strings.Repeat("a", maxReportBytes) + `"}}`
	rec = submit(h, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	h, _ = newTestHandler(failingStore{})
	rec = submit(h, sampleReport)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestList(t *testing.T) {
	store := NewMemoryStore(10, time.Minute)
	h, _ := newTestHandler(store)
	for _, uri := range []string{"https://a.example", "https://b.example"} {
		require.Equal(t, http.StatusNoContent,
			submit(h, `{"csp-report": {"document-uri": "`+uri+`", "violated-directive": "img-src"}}`).Code)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"default limit", "", http.StatusOK, 2},
		{"explicit limit", "?limit=1", http.StatusOK, 1},
		{"bad limit", "?limit=abc", http.StatusBadRequest, 0},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.List(rec, httptest.NewRequest(http.MethodGet, "/csp/reports"+tt.query, nil))
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ListResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Equal(t, "https://b.example", resp.Reports[0].DocumentURI)
		})
	}

	h, _ = newTestHandler(failingStore{})
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/csp/reports", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
