package csp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubParser map[string]*Browser

func (p stubParser) Parse(ua string) *Browser {
	return p[ua]
}

func TestSerializeDirectives(t *testing.T) {
	out, err := SerializeDirectives(Directives{}.Set("base-uri", "self"))
	require.NoError(t, err)
	assert.Equal(t, "base-uri self; ", out)

	out, err = SerializeDirectives(Directives{}.
		Set("default-src", "self").
		Set("script-src", "self", "cdnjs.cloudflare.com").
		Set("img-src", "*", "data:"))
	require.NoError(t, err)
	assert.Equal(t, "default-src self; script-src self cdnjs.cloudflare.com; img-src * data:; ", out)

	out, err = SerializeDirectives(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSerializeDirectivesRejectsUnknown(t *testing.T) {
	_, err := SerializeDirectives(Directives{}.
		Set("default-src", "self").
		Set("foo-bar", "self").
		Set("baz-src", "self"))
	require.Error(t, err)
	assert.EqualError(t, err, "invalid directive: foo-bar")
	assert.True(t, errors.Is(err, ErrInvalidDirective))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "foo-bar", verr.Directive)
}

func TestSerializeParseRoundTrip(t *testing.T) {
	cases := []Directives{
		Directives{}.Set("base-uri", "self"),
		Directives{}.Set("default-src", "self", "js.example.com").Set("object-src", "none"),
		Directives{}.Set("script-src", "https:", "*.cdn.example.com", "unsafe-eval").
			Set("report-uri", "/csp/report").
			Set("frame-ancestors", "none"),
	}
	for _, directives := range cases {
		out, err := SerializeDirectives(directives)
		require.NoError(t, err)
		parsed, err := ParseDirectives(out)
		require.NoError(t, err)
		assert.Equal(t, directives, parsed)
	}
}

func TestDirectivesSetKeepsOrder(t *testing.T) {
	d := Directives{}.Set("default-src", "self").Set("img-src", "*").Set("default-src", "none")
	require.Len(t, d, 2)
	assert.Equal(t, "default-src", d[0].Name)
	src, ok := d.Get("default-src")
	require.True(t, ok)
	assert.Equal(t, []string{"none"}, src)
}

func TestDirectivesSetLeavesReceiverUntouched(t *testing.T) {
	base := make(Directives, 0, 4).Set("default-src", "self").Set("img-src", "*")

	replaced := base.Set("default-src", "none")
	appended := base.Set("script-src", "self")
	other := base.Set("object-src", "none")

	src, _ := base.Get("default-src")
	assert.Equal(t, []string{"self"}, src)
	require.Len(t, base, 2)

	src, _ = replaced.Get("default-src")
	assert.Equal(t, []string{"none"}, src)

	_, ok := appended.Get("object-src")
	assert.False(t, ok)
	_, ok = other.Get("script-src")
	assert.False(t, ok)
}

func TestQuoteKeywords(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"base-uri self; ", "base-uri 'self'; "},
		{"base-uri *.example.com; ", "base-uri *.example.com; "},
		{"script-src unsafe-eval; ", "script-src 'unsafe-eval'; "},
		{"script-src self unsafe-inline; object-src none; ", "script-src 'self' 'unsafe-inline'; object-src 'none'; "},
		{"img-src myself.example.com self-hosted.io; ", "img-src myself.example.com self-hosted.io; "},
		{"default-src 'self'; ", "default-src 'self'; "},
		{"default-src Self; ", "default-src Self; "},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			once := QuoteKeywords(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, QuoteKeywords(once))
		})
	}
}

func TestSubstituteNonce(t *testing.T) {
	in := "script-src self @nonce; "
	assert.Equal(t, "script-src self 'nonce-abc123'; ", SubstituteNonce(in, "abc123"))
	assert.Equal(t, "script-src self; ", SubstituteNonce(in, ""))
	assert.Equal(t, "script-src @nonce-ish; ", SubstituteNonce("script-src @nonce-ish; ", "abc"))
}

func TestBuild(t *testing.T) {
	directives := Directives{}.Set("default-src", "self", "js.example.com")
	want := "default-src 'self' js.example.com; "

	t.Run("unknown browser gets every header", func(t *testing.T) {
		headers, err := Build(&Browser{Name: "G-Bot", Version: "27"}, directives, Options{})
		require.NoError(t, err)
		assert.Equal(t, Headers{
			"Content-Security-Policy":   want,
			"X-Content-Security-Policy": want,
			"X-WebKit-CSP":              want,
		}, headers)
	})

	t.Run("chrome gets standard header", func(t *testing.T) {
		headers, err := Build(&Browser{Name: "Chrome", Version: "27.0.1453.93"}, directives, Options{})
		require.NoError(t, err)
		assert.Equal(t, Headers{"Content-Security-Policy": want}, headers)
	})

	t.Run("report only", func(t *testing.T) {
		headers, err := Build(&Browser{Name: "Chrome", Version: "27"}, directives, Options{ReportOnly: true})
		require.NoError(t, err)
		assert.Equal(t, Headers{"Content-Security-Policy-Report-Only": want}, headers)
	})

	t.Run("unsupported browser", func(t *testing.T) {
		headers, err := Build(&Browser{Name: "Opera", Version: "11.52"}, directives, Options{})
		require.NoError(t, err)
		assert.Empty(t, headers)
	})

	t.Run("empty directives", func(t *testing.T) {
		for _, b := range []*Browser{nil, {Name: "Chrome", Version: "45"}, {Name: "IE", Version: "11"}} {
			headers, err := Build(b, Directives{}, Options{})
			require.NoError(t, err)
			assert.Empty(t, headers)
		}
	})

	t.Run("invalid directive aborts", func(t *testing.T) {
		headers, err := Build(nil, directives.Set("foo-bar", "self"), Options{})
		assert.Nil(t, headers)
		assert.ErrorIs(t, err, ErrInvalidDirective)
	})

	t.Run("nonce", func(t *testing.T) {
		d := Directives{}.Set("script-src", "self", "cdnjs.cloudflare.com", NoncePlaceholder)
		headers, err := Build(&Browser{Name: "Firefox", Version: "60"}, d, Options{Nonce: "614d9122"})
		require.NoError(t, err)
		assert.Equal(t, Headers{
			"Content-Security-Policy": "script-src 'self' cdnjs.cloudflare.com 'nonce-614d9122'; ",
		}, headers)
	})
}

func TestApply(t *testing.T) {
	parser := stubParser{"chrome-ua": {Name: "Chrome", Version: "27"}}
	directives := Directives{}.Set("default-src", "self", "js.example.com")

	t.Run("no user agent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		_, err := Apply(w, r, parser, directives, Options{})
		require.NoError(t, err)
		assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
		assert.NotEmpty(t, w.Header().Get("X-Content-Security-Policy"))
		assert.NotEmpty(t, w.Header().Get("X-WebKit-CSP"))
	})

	t.Run("chrome user agent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("User-Agent", "chrome-ua")
		w := httptest.NewRecorder()
		headers, err := Apply(w, r, parser, directives, Options{})
		require.NoError(t, err)
		assert.Len(t, headers, 1)
		assert.Equal(t, "default-src 'self' js.example.com; ", w.Header().Get("Content-Security-Policy"))
		assert.Empty(t, w.Header().Get("X-Content-Security-Policy"))
		assert.Empty(t, w.Header().Get("X-WebKit-CSP"))
	})

	t.Run("invalid directive leaves response untouched", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		_, err := Apply(w, r, parser, Directives{}.Set("nope", "self"), Options{})
		require.Error(t, err)
		assert.Empty(t, w.Header())
	})
}
