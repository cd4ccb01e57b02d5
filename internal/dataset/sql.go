// Package dataset provides the storage backends that expose per-round cutoff tables.
package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"college-predictor/internal/common/config"
	"college-predictor/internal/common/logger"
	"college-predictor/internal/cutoff"
)

// Layout names the round tables and the shared columns of a cutoff store.
type Layout struct {
	Rounds            []string // one table or index per round, first round first
	InstitutionColumn string
	ProgramColumn     string
	Categories        cutoff.CategorySet
	MaxRows           int // a round holding more rows fails with ErrRoundTooLarge
}

// ErrRoundTooLarge reports a round source with more rows than Layout.MaxRows.
var ErrRoundTooLarge = errors.New("round exceeds max rows")

func (l Layout) checkRowCount(round cutoff.Round, source string, rows int) error {
	if l.MaxRows > 0 && rows > l.MaxRows {
		return fmt.Errorf("%w: %s round %s has more than %d rows", ErrRoundTooLarge, round, source, l.MaxRows)
	}
	return nil
}

func (l Layout) roundNames() (map[cutoff.Round]string, error) {
	if len(l.Rounds) != len(cutoff.Rounds) {
		return nil, fmt.Errorf("expected %d round sources, got %d", len(cutoff.Rounds), len(l.Rounds))
	}
	names := make(map[cutoff.Round]string, len(l.Rounds))
	for i, round := range cutoff.Rounds {
		names[round] = l.Rounds[i]
	}
	return names, nil
}

// SQLStore reads round tables from PostgreSQL or SQLite. Identifiers are
// quoted and the category is re-checked against the allow-list before a
// statement is built.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	tables  map[cutoff.Round]string
	layout  Layout
	logger  logger.Logger
}

func NewSQLStore(db *sql.DB, dialect string, layout Layout, log logger.Logger) (*SQLStore, error) {
	tables, err := layout.roundNames()
	if err != nil {
		return nil, err
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	switch dialect {
	case config.BackendPostgres:
	case config.BackendSQLite:
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	return &SQLStore{
		db:      db,
		builder: builder,
		tables:  tables,
		layout:  layout,
		logger:  log.WithFields(map[string]interface{}{"backend": dialect}),
	}, nil
}

// roundQuery builds the scan of one round. Rows are ordered by institution
// and program so repeated scans see the same discovery order.
func (s *SQLStore) roundQuery(round cutoff.Round, category cutoff.Category) (string, []interface{}, error) {
	table, ok := s.tables[round]
	if !ok {
		return "", nil, fmt.Errorf("no table configured for %s round", round)
	}
	if !s.layout.Categories.Contains(category) {
		return "", nil, fmt.Errorf("%w: %q", cutoff.ErrInvalidCategory, category)
	}

	institution := pq.QuoteIdentifier(s.layout.InstitutionColumn)
	program := pq.QuoteIdentifier(s.layout.ProgramColumn)
	column := pq.QuoteIdentifier(string(category))

	q := s.builder.
		Select(institution, program, column).
		From(pq.QuoteIdentifier(table)).
		Where(sq.NotEq{column: cutoff.UnrankedSentinel}).
		OrderBy(institution, program)
	if s.layout.MaxRows > 0 {
		// one extra row tells a full round from an overflowing one
		q = q.Limit(uint64(s.layout.MaxRows) + 1)
	}
	return q.ToSql()
}

func (s *SQLStore) ScanRound(ctx context.Context, round cutoff.Round, category cutoff.Category) ([]cutoff.CutoffRecord, error) {
	query, args, err := s.roundQuery(round, category)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s round: %w", round, err)
	}
	defer rows.Close()

	var (
		records []cutoff.CutoffRecord
		scanned int
	)
	for rows.Next() {
		scanned++
		if err := s.layout.checkRowCount(round, s.tables[round], scanned); err != nil {
			return nil, err
		}
		var institution, program, raw sql.NullString
		if err := rows.Scan(&institution, &program, &raw); err != nil {
			return nil, fmt.Errorf("scan %s round row: %w", round, err)
		}
		if !institution.Valid || !program.Valid {
			continue
		}
		records = append(records, cutoff.NewRecord(institution.String, program.String, raw.String))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s round: %w", round, err)
	}

	s.logger.Debug("Scanned round", map[string]interface{}{
		"round":    round.String(),
		"table":    s.tables[round],
		"category": category.String(),
		"rows":     len(records),
	})
	return records, nil
}
