package csp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidDirective is wrapped by every ValidationError.
var ErrInvalidDirective = errors.New("invalid directive")

// ValidationError reports a directive name outside the allow-list.
type ValidationError struct {
	Directive string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDirective, e.Directive)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDirective
}

// NoncePlaceholder is replaced with the request nonce inside source lists.
const NoncePlaceholder = "@nonce"

var directiveNames = []string{
	"base-uri",
	"child-src",
	"connect-src",
	"default-src",
	"font-src",
	"form-action",
	"frame-ancestors",
	"frame-src",
	"img-src",
	"media-src",
	"object-src",
	"plugin-types",
	"report-uri",
	"style-src",
	"script-src",
	"upgrade-insecure-requests",
}

var allowedDirectives = func() map[string]struct{} {
	m := make(map[string]struct{}, len(directiveNames))
	for _, name := range directiveNames {
		m[name] = struct{}{}
	}
	return m
}()

var keywords = map[string]struct{}{
	"none":          {},
	"self":          {},
	"unsafe-inline": {},
	"unsafe-eval":   {},
}

// Options controls header selection and serialization.
type Options struct {
	// SetAllHeaders emits every known header regardless of the browser.
	SetAllHeaders bool
	// ReportOnly appends -Report-Only to every header name.
	ReportOnly bool
	// DisableAndroid turns off CSP for the stock Android browser.
	DisableAndroid bool
	// Nonce replaces @nonce in source lists. Empty drops the placeholder.
	Nonce string
}

// Directive is a single named CSP rule with its sources.
type Directive struct {
	Name    string
	Sources []string
}

// Directives keeps directives in insertion order.
type Directives []Directive

// Set returns a copy of d with name's sources replaced, or with the directive
// appended when it is not present. The receiver is never modified.
func (d Directives) Set(name string, sources ...string) Directives {
	out := make(Directives, len(d), len(d)+1)
	copy(out, d)
	for i := range out {
		if out[i].Name == name {
			out[i].Sources = sources
			return out
		}
	}
	return append(out, Directive{Name: name, Sources: sources})
}

// Get returns the sources for a directive.
func (d Directives) Get(name string) ([]string, bool) {
	for _, dir := range d {
		if dir.Name == name {
			return dir.Sources, true
		}
	}
	return nil, false
}

// Headers maps final header names to the serialized policy.
type Headers map[string]string

// AllowedDirectives returns the directive allow-list.
func AllowedDirectives() []string {
	return append([]string(nil), directiveNames...)
}

// IsAllowedDirective reports whether name is on the directive allow-list.
func IsAllowedDirective(name string) bool {
	_, ok := allowedDirectives[name]
	return ok
}

// SerializeDirectives renders directives as "name src1 src2; " clauses.
// The first unknown directive aborts serialization.
func SerializeDirectives(directives Directives) (string, error) {
	var b strings.Builder
	for _, d := range directives {
		if !IsAllowedDirective(d.Name) {
			return "", &ValidationError{Directive: d.Name}
		}
		b.WriteString(d.Name)
		b.WriteByte(' ')
		b.WriteString(strings.Join(d.Sources, " "))
		b.WriteString("; ")
	}
	return b.String(), nil
}

// ParseDirectives reads a serialized policy back into Directives.
func ParseDirectives(policy string) (Directives, error) {
	var directives Directives
	for _, clause := range strings.Split(policy, ";") {
		fields := strings.Fields(clause)
		if len(fields) == 0 {
			continue
		}
		if !IsAllowedDirective(fields[0]) {
			return nil, &ValidationError{Directive: fields[0]}
		}
		directives = directives.Set(fields[0], fields[1:]...)
	}
	return directives, nil
}

// QuoteKeywords wraps bare CSP keywords in single quotes.
// Only whole space-delimited tokens are touched, so quoting twice is a no-op.
func QuoteKeywords(serialized string) string {
	return mapTokens(serialized, func(tok string) (string, bool) {
		if _, ok := keywords[tok]; ok {
			return "'" + tok + "'", true
		}
		return tok, true
	})
}

// SubstituteNonce replaces the @nonce source with 'nonce-<nonce>'.
// With an empty nonce the placeholder is removed.
func SubstituteNonce(serialized, nonce string) string {
	return mapTokens(serialized, func(tok string) (string, bool) {
		if tok != NoncePlaceholder {
			return tok, true
		}
		if nonce == "" {
			return "", false
		}
		return "'nonce-" + nonce + "'", true
	})
}

// mapTokens rewrites each space-delimited token, ignoring a trailing ';'.
// Returning false drops the token.
func mapTokens(s string, fn func(tok string) (string, bool)) string {
	parts := strings.Split(s, " ")
	out := parts[:0]
	for _, part := range parts {
		tok, semi := strings.CutSuffix(part, ";")
		if tok == "" {
			out = append(out, part)
			continue
		}
		repl, keep := fn(tok)
		switch {
		case keep && semi:
			out = append(out, repl+";")
		case keep:
			out = append(out, repl)
		case semi && len(out) > 0:
			out[len(out)-1] += ";"
		}
	}
	return strings.Join(out, " ")
}

// Build computes the CSP headers for a browser. An unsupported browser or an
// empty policy yields an empty set.
func Build(b *Browser, directives Directives, opts Options) (Headers, error) {
	tokens := ResolveTokens(b, opts)
	if len(tokens) == 0 {
		return Headers{}, nil
	}

	serialized, err := SerializeDirectives(directives)
	if err != nil {
		return nil, err
	}
	policy := QuoteKeywords(SubstituteNonce(serialized, opts.Nonce))
	if strings.TrimSpace(policy) == "" {
		return Headers{}, nil
	}

	headers := make(Headers, len(tokens))
	for _, t := range tokens {
		name := t.HeaderName()
		if opts.ReportOnly {
			name = t.ReportOnlyName()
		}
		headers[name] = policy
	}
	return headers, nil
}

// Apply builds the headers for the request's user agent and sets them on w.
func Apply(w http.ResponseWriter, r *http.Request, parser UserAgentParser, directives Directives, opts Options) (Headers, error) {
	var browser *Browser
	if ua := r.Header.Get("User-Agent"); ua != "" && parser != nil {
		browser = parser.Parse(ua)
	}

	headers, err := Build(browser, directives, opts)
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		w.Header().Set(name, value)
	}
	return headers, nil
}
