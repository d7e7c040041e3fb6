package report

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-csp/internal/database"
)

// PostgresStore persists every accepted report in csp_violations.
type PostgresStore struct {
	db     *bun.DB
	window time.Duration
}

func NewPostgresStore(db *bun.DB, dedupWindow time.Duration) *PostgresStore {
	return &PostgresStore{db: db, window: dedupWindow}
}

// Save checks for a duplicate and inserts in one transaction. An advisory lock
// on the fingerprint serializes concurrent saves of the same report.
func (s *PostgresStore) Save(ctx context.Context, v *Violation) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", v.Fingerprint); err != nil {
			return fmt.Errorf("failed to lock report fingerprint: %w", err)
		}

		exists, err := tx.NewSelect().
			Model((*database.Violation)(nil)).
			Where("fingerprint = ?", v.Fingerprint).
			Where("received_at > ?", v.ReceivedAt.Add(-s.window)).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check duplicate report: %w", err)
		}
		if exists {
			return ErrDuplicate
		}

		if _, err := tx.NewInsert().Model(toRow(v)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to store report: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit reports, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Violation, error) {
	var rows []database.Violation
	q := s.db.NewSelect().Model(&rows).Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	out := make([]Violation, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

func toRow(v *Violation) *database.Violation {
	return &database.Violation{
		ID:                 v.ID,
		ReceivedAt:         v.ReceivedAt,
		Fingerprint:        v.Fingerprint,
		UserAgent:          v.UserAgent,
		Browser:            v.Browser,
		DocumentURI:        v.DocumentURI,
		Referrer:           v.Referrer,
		ViolatedDirective:  v.ViolatedDirective,
		EffectiveDirective: v.EffectiveDirective,
		OriginalPolicy:     v.OriginalPolicy,
		Disposition:        v.Disposition,
		BlockedURI:         v.BlockedURI,
		SourceFile:         v.SourceFile,
		LineNumber:         v.LineNumber,
		ColumnNumber:       v.ColumnNumber,
		StatusCode:         v.StatusCode,
	}
}

func fromRow(r *database.Violation) Violation {
	return Violation{
		ID:                 r.ID,
		ReceivedAt:         r.ReceivedAt,
		Fingerprint:        r.Fingerprint,
		UserAgent:          r.UserAgent,
		Browser:            r.Browser,
		DocumentURI:        r.DocumentURI,
		Referrer:           r.Referrer,
		ViolatedDirective:  r.ViolatedDirective,
		EffectiveDirective: r.EffectiveDirective,
		OriginalPolicy:     r.OriginalPolicy,
		Disposition:        r.Disposition,
		BlockedURI:         r.BlockedURI,
		SourceFile:         r.SourceFile,
		LineNumber:         r.LineNumber,
		ColumnNumber:       r.ColumnNumber,
		StatusCode:         r.StatusCode,
	}
}
