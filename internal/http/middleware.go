package http

import (
	"net/http"

	"github.com/redmonkez12/go-csp/internal/config"
	"github.com/redmonkez12/go-csp/internal/csp"
	"github.com/redmonkez12/go-csp/internal/httputil"
	"github.com/redmonkez12/go-csp/internal/logging"
	"github.com/redmonkez12/go-csp/internal/metrics"
)

// SecurityHeaders adds the static security headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// ContentSecurityPolicy sets the CSP header(s) matching the requesting
// browser. When nonces are enabled a fresh one is generated per request and
// stored in the request context for templates.
func ContentSecurityPolicy(cfg config.CSPConfig, parser csp.UserAgentParser, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var nonce string
			if cfg.Nonce {
				nonce = csp.NewNonce()
				r = r.WithContext(csp.WithNonce(r.Context(), nonce))
			}

			logger := logging.FromContext(r.Context())
			headers, err := csp.Apply(w, r, parser, cfg.Directives, cfg.Options(nonce))
			if err != nil {
				m.PolicyErrors.Inc()
				logger.Error("failed to build content security policy", "error", err.Error())
				httputil.RespondErrorWithCode(w, "content security policy misconfigured", httputil.CodeInvalidPolicy, http.StatusInternalServerError)
				return
			}

			names := make([]string, 0, len(headers))
			for name := range headers {
				names = append(names, name)
			}
			m.RecordHeaders(names)
			logger.Debug("content security policy applied", "headers", names)

			next.ServeHTTP(w, r)
		})
	}
}
