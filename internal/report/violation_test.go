package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{
  "csp-report": {
    "document-uri": "https://example.com/page",
    "referrer": "",
    "violated-directive": "script-src 'self'",
    "original-policy": "default-src 'self'; script-src 'self'; report-uri /csp/report",
    "blocked-uri": "https://evil.example.net/x.js",
    "line-number": 12,
    "status-code": 200
  }
}`

func TestDecode(t *testing.T) {
	v, err := Decode(strings.NewReader(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/page", v.DocumentURI)
	assert.Equal(t, "script-src", v.EffectiveDirective)
	assert.Equal(t, "https://evil.example.net/x.js", v.BlockedURI)
	assert.Equal(t, 12, v.LineNumber)
	assert.Len(t, v.Fingerprint, 32)
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"not json":          "nope",
		"missing report":    `{}`,
		"missing uri":       `{"csp-report": {"violated-directive": "img-src"}}`,
		"missing directive": `{"csp-report": {"document-uri": "https://example.com"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(body))
			assert.ErrorIs(t, err, ErrMalformedReport)
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := &Violation{DocumentURI: "https://example.com", EffectiveDirective: "img-src", BlockedURI: "data"}
	b := &Violation{DocumentURI: "https://example.com", EffectiveDirective: "img-src", BlockedURI: "data", LineNumber: 4}
	c := &Violation{DocumentURI: "https://example.com", EffectiveDirective: "script-src", BlockedURI: "data"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}
