package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-csp/internal/csp"
)

func TestParse(t *testing.T) {
	p := NewParser()

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, p.Parse(""))
		assert.Nil(t, p.Parse("   "))
	})

	t.Run("desktop chrome", func(t *testing.T) {
		b := p.Parse("Mozilla/5.0 (Windows NT 6.1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/27.0.1453.93 Safari/537.36")
		require.NotNil(t, b)
		assert.Equal(t, "Chrome", b.Name)
		assert.Equal(t, "27.0.1453", b.Version)
		assert.Equal(t, []csp.HeaderToken{csp.Standard}, csp.ResolveTokens(b, csp.Options{}))
	})

	t.Run("firefox", func(t *testing.T) {
		b := p.Parse("Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0")
		require.NotNil(t, b)
		assert.Equal(t, "Firefox", b.Name)
	})

	t.Run("chrome on iOS", func(t *testing.T) {
		b := p.Parse("Mozilla/5.0 (iPhone; CPU iPhone OS 10_3 like Mac OS X) AppleWebKit/602.1.50 (KHTML, like Gecko) CriOS/56.0.2924.75 Mobile/14E5239e Safari/602.1")
		require.NotNil(t, b)
		assert.Equal(t, "Chrome Mobile", b.Name)
		require.NotNil(t, b.OS)
		assert.Equal(t, "iOS", b.OS.Family)
	})
}

func TestJoinVersion(t *testing.T) {
	assert.Equal(t, "4.4", joinVersion("4", "4", ""))
	assert.Equal(t, "10", joinVersion("10", "", "3"))
	assert.Equal(t, "", joinVersion("", ""))
}
