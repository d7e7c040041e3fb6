package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Violation is the csp_violations row.
type Violation struct {
	bun.BaseModel `bun:"table:csp_violations"`

	ID                 uuid.UUID `bun:"id,pk,type:uuid"`
	ReceivedAt         time.Time `bun:"received_at,notnull"`
	Fingerprint        string    `bun:"fingerprint,notnull"`
	UserAgent          string    `bun:"user_agent"`
	Browser            string    `bun:"browser"`
	DocumentURI        string    `bun:"document_uri,notnull"`
	Referrer           string    `bun:"referrer"`
	ViolatedDirective  string    `bun:"violated_directive"`
	EffectiveDirective string    `bun:"effective_directive,notnull"`
	OriginalPolicy     string    `bun:"original_policy"`
	Disposition        string    `bun:"disposition"`
	BlockedURI         string    `bun:"blocked_uri"`
	SourceFile         string    `bun:"source_file"`
	LineNumber         int       `bun:"line_number"`
	ColumnNumber       int       `bun:"column_number"`
	StatusCode         int       `bun:"status_code"`
}
