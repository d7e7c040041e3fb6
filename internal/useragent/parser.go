package useragent

import (
	"strings"

	"github.com/ua-parser/uap-go/uaparser"

	"github.com/redmonkez12/go-csp/internal/csp"
)

// familyAliases maps uap-core family names onto the identities used by the
// CSP rule table.
var familyAliases = map[string]string{
	"Android":           "Android Browser",
	"Chrome Mobile iOS": "Chrome Mobile",
	"Mobile Safari":     "Safari",
	"Opera Mobile":      "Opera",
}

const unknownFamily = "Other"

// Parser resolves User-Agent strings with the embedded uap-core definitions.
type Parser struct {
	uap *uaparser.Parser
}

func NewParser() *Parser {
	return &Parser{uap: uaparser.NewFromSaved()}
}

// Parse implements csp.UserAgentParser. Unrecognized agents return nil so the
// policy falls back to sending every header.
func (p *Parser) Parse(userAgent string) *csp.Browser {
	if strings.TrimSpace(userAgent) == "" {
		return nil
	}

	client := p.uap.Parse(userAgent)
	if client == nil || client.UserAgent == nil || client.UserAgent.Family == unknownFamily {
		return nil
	}

	name := client.UserAgent.Family
	if alias, ok := familyAliases[name]; ok {
		name = alias
	}

	browser := &csp.Browser{
		Name:    name,
		Version: joinVersion(client.UserAgent.Major, client.UserAgent.Minor, client.UserAgent.Patch),
	}
	if client.Os != nil && client.Os.Family != unknownFamily {
		browser.OS = &csp.OS{
			Family:  client.Os.Family,
			Version: joinVersion(client.Os.Major, client.Os.Minor, client.Os.Patch),
		}
	}
	return browser
}

func joinVersion(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			break
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}
