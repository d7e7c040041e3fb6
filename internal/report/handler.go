package report

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-csp/internal/csp"
	"github.com/redmonkez12/go-csp/internal/httputil"
	"github.com/redmonkez12/go-csp/internal/logging"
	"github.com/redmonkez12/go-csp/internal/metrics"
)

const (
	maxReportBytes   = 64 << 10
	defaultListLimit = 50

	otherDirective = "other"
)

// Handler serves the report-uri endpoint and the operator listing.
type Handler struct {
	store    Store
	parser   csp.UserAgentParser
	metrics  *metrics.Metrics
	maxLimit int
	now      func() time.Time
}

func NewHandler(store Store, parser csp.UserAgentParser, m *metrics.Metrics, maxLimit int) *Handler {
	return &Handler{
		store:    store,
		parser:   parser,
		metrics:  m,
		maxLimit: maxLimit,
		now:      time.Now,
	}
}

// ListResponse is returned by List.
type ListResponse struct {
	Reports []Violation `json:"reports"`
	Count   int         `json:"count"`
}

// Submit accepts a browser-sent violation report. Duplicates inside the
// dedup window are acknowledged but not stored.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	v, err := Decode(http.MaxBytesReader(w, r.Body, maxReportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondErrorWithCode(w, "report body too large", httputil.CodeReportTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		logger.Debug("rejected violation report", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid violation report", httputil.CodeInvalidReport, http.StatusBadRequest)
		return
	}

	v.ID = uuid.New()
	v.ReceivedAt = h.now().UTC()
	v.UserAgent = r.UserAgent()
	if h.parser != nil {
		if b := h.parser.Parse(v.UserAgent); b != nil {
			v.Browser = b.Name
		}
	}

	if err := h.store.Save(r.Context(), v); err != nil {
		if errors.Is(err, ErrDuplicate) {
			h.metrics.DuplicateReports.Inc()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		logger.Error("failed to store violation report", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to store report", httputil.CodeInternal, http.StatusInternalServerError)
		return
	}

	h.metrics.ViolationReports.WithLabelValues(directiveLabel(v.EffectiveDirective)).Inc()
	logger.Info("csp violation",
		"directive", v.EffectiveDirective,
		"blocked_uri", v.BlockedURI,
		"document_uri", v.DocumentURI,
		"disposition", v.Disposition,
	)
	w.WriteHeader(http.StatusNoContent)
}

// directiveLabel keeps the metric label set bounded to the directive allow-list.
func directiveLabel(directive string) string {
	if csp.IsAllowedDirective(directive) {
		return directive
	}
	return otherDirective
}

// List returns the newest stored reports. ?limit= is capped at the configured maximum.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.RespondError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	reports, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list violation reports", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list reports", httputil.CodeInternal, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ListResponse{Reports: reports, Count: len(reports)}, http.StatusOK)
}
