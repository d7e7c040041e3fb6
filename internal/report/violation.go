package report

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var ErrMalformedReport = errors.New("malformed violation report")

// Violation is a stored CSP violation report.
type Violation struct {
	ID                 uuid.UUID `json:"id"`
	ReceivedAt         time.Time `json:"received_at"`
	Fingerprint        string    `json:"fingerprint"`
	UserAgent          string    `json:"user_agent,omitempty"`
	Browser            string    `json:"browser,omitempty"`
	DocumentURI        string    `json:"document_uri"`
	Referrer           string    `json:"referrer,omitempty"`
	ViolatedDirective  string    `json:"violated_directive"`
	EffectiveDirective string    `json:"effective_directive"`
	OriginalPolicy     string    `json:"original_policy,omitempty"`
	Disposition        string    `json:"disposition,omitempty"`
	BlockedURI         string    `json:"blocked_uri,omitempty"`
	SourceFile         string    `json:"source_file,omitempty"`
	LineNumber         int       `json:"line_number,omitempty"`
	ColumnNumber       int       `json:"column_number,omitempty"`
	StatusCode         int       `json:"status_code,omitempty"`
}

// body mirrors the application/csp-report wire format sent to report-uri.
type body struct {
	Report struct {
		DocumentURI        string `json:"document-uri"`
		Referrer           string `json:"referrer"`
		ViolatedDirective  string `json:"violated-directive"`
		EffectiveDirective string `json:"effective-directive"`
		OriginalPolicy     string `json:"original-policy"`
		Disposition        string `json:"disposition"`
		BlockedURI         string `json:"blocked-uri"`
		SourceFile         string `json:"source-file"`
		LineNumber         int    `json:"line-number"`
		ColumnNumber       int    `json:"column-number"`
		StatusCode         int    `json:"status-code"`
	} `json:"csp-report"`
}

// Decode reads one report body. The effective directive falls back to the
// first token of the violated directive for browsers that omit it.
func Decode(r io.Reader) (*Violation, error) {
	var b body
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}

	rep := b.Report
	effective := rep.EffectiveDirective
	if effective == "" {
		if fields := strings.Fields(rep.ViolatedDirective); len(fields) > 0 {
			effective = fields[0]
		}
	}
	if rep.DocumentURI == "" || effective == "" {
		return nil, fmt.Errorf("%w: document-uri and directive are required", ErrMalformedReport)
	}

	v := &Violation{
		DocumentURI:        rep.DocumentURI,
		Referrer:           rep.Referrer,
		ViolatedDirective:  rep.ViolatedDirective,
		EffectiveDirective: effective,
		OriginalPolicy:     rep.OriginalPolicy,
		Disposition:        rep.Disposition,
		BlockedURI:         rep.BlockedURI,
		SourceFile:         rep.SourceFile,
		LineNumber:         rep.LineNumber,
		ColumnNumber:       rep.ColumnNumber,
		StatusCode:         rep.StatusCode,
	}
	v.Fingerprint = Fingerprint(v)
	return v, nil
}

// Fingerprint identifies repeats of the same violation on the same page.
func Fingerprint(v *Violation) string {
	sum := blake2b.Sum256([]byte(v.DocumentURI + "\x00" + v.EffectiveDirective + "\x00" + v.BlockedURI))
	return hex.EncodeToString(sum[:16])
}
