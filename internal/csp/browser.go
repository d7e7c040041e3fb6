package csp

import (
	"strconv"
	"strings"
)

// HeaderToken identifies one of the header names a browser understands.
type HeaderToken int

const (
	Standard HeaderToken = iota
	LegacyX
	LegacyWebKit
)

const (
	HeaderStandard     = "Content-Security-Policy"
	HeaderLegacyX      = "X-Content-Security-Policy"
	HeaderLegacyWebKit = "X-WebKit-CSP"

	reportOnlySuffix = "-Report-Only"
)

// HeaderName returns the literal header name for the token.
func (t HeaderToken) HeaderName() string {
	switch t {
	case Standard:
		return HeaderStandard
	case LegacyX:
		return HeaderLegacyX
	case LegacyWebKit:
		return HeaderLegacyWebKit
	default:
		return ""
	}
}

// ReportOnlyName returns the report-only variant of the header name.
func (t HeaderToken) ReportOnlyName() string {
	return t.HeaderName() + reportOnlySuffix
}

func (t HeaderToken) String() string {
	return t.HeaderName()
}

// OS is the operating system part of a parsed user agent.
type OS struct {
	Family  string
	Version string
}

// Browser describes the requesting browser as reported by a user agent parser.
type Browser struct {
	Name    string
	Version string
	OS      *OS
}

// UserAgentParser turns a raw User-Agent header into a Browser.
// It returns nil when the string cannot be parsed.
type UserAgentParser interface {
	Parse(userAgent string) *Browser
}

type rule func(b *Browser, opts Options) []HeaderToken

var allTokens = []HeaderToken{Standard, LegacyX, LegacyWebKit}

// browserRules is keyed by browser identity and never mutated after init.
var browserRules = map[string]rule{
	"IE": func(b *Browser, _ Options) []HeaderToken {
		return byMajor(b.Version, threshold{12, Standard}, threshold{10, LegacyX})
	},
	"Chrome": func(b *Browser, _ Options) []HeaderToken {
		return byMajor(b.Version, threshold{25, Standard}, threshold{14, LegacyWebKit})
	},
	"Safari": func(b *Browser, _ Options) []HeaderToken {
		return byMajor(b.Version, threshold{9, Standard}, threshold{6, LegacyWebKit})
	},
	"Opera": func(b *Browser, _ Options) []HeaderToken {
		return byMajor(b.Version, threshold{15, Standard})
	},
	"Firefox": func(b *Browser, _ Options) []HeaderToken {
		return byMajor(b.Version, threshold{23, Standard}, threshold{4, LegacyX})
	},
	"Android Browser": func(b *Browser, opts Options) []HeaderToken {
		if opts.DisableAndroid || b.OS == nil {
			return nil
		}
		if versionAtLeast(b.OS.Version, 4, 4) {
			return []HeaderToken{Standard}
		}
		return nil
	},
	// Chrome Mobile on Android inherits WebView constraints, so only iOS is trusted.
	"Chrome Mobile": func(b *Browser, _ Options) []HeaderToken {
		if b.OS != nil && b.OS.Family == "iOS" {
			return []HeaderToken{Standard}
		}
		return nil
	},
}

type threshold struct {
	from  int
	token HeaderToken
}

// byMajor returns the token of the first threshold the major version reaches.
// Thresholds must be ordered from highest to lowest.
func byMajor(version string, thresholds ...threshold) []HeaderToken {
	major, _ := versionParts(version)
	for _, t := range thresholds {
		if major >= t.from {
			return []HeaderToken{t.token}
		}
	}
	return nil
}

// AllTokens returns every header token known to the rule table.
func AllTokens() []HeaderToken {
	return append([]HeaderToken(nil), allTokens...)
}

// ResolveTokens returns the header tokens the browser should receive.
// Unknown or missing browsers get every token.
func ResolveTokens(b *Browser, opts Options) []HeaderToken {
	if b == nil || opts.SetAllHeaders {
		return AllTokens()
	}
	r, ok := browserRules[b.Name]
	if !ok {
		return AllTokens()
	}
	return r(b, opts)
}

func versionAtLeast(version string, major, minor int) bool {
	maj, mn := versionParts(version)
	if maj != major {
		return maj > major
	}
	return mn >= minor
}

// versionParts extracts the leading integers of the first two dotted
// components. Anything unparsable counts as zero.
func versionParts(version string) (major, minor int) {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	major = leadingInt(parts[0])
	if len(parts) > 1 {
		minor = leadingInt(parts[1])
	}
	return major, minor
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
