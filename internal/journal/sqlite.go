package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Record(ctx context.Context, e Entry) error {
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return err
	}
	audit, err := json.Marshal(e.Audit)
	if err != nil {
		return err
	}

	var spread sql.NullFloat64
	if e.Spread != nil {
		spread = sql.NullFloat64{Float64: *e.Spread, Valid: true}
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO decisions
		(id, created_at, symbol, action, recommended, outcome, mode, confidence, risk_level,
		 position_size, stop_loss, take_profit, reference_price, spread, verified, sources, rationale, audit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UTC().Format(timeLayout), e.Symbol, string(e.Action), string(e.Recommended),
		string(e.Outcome), string(e.Mode), e.Confidence, string(e.RiskLevel),
		e.PositionSize, e.StopLoss, e.TakeProfit, e.ReferencePrice, spread, e.Verified,
		string(sources), e.Rationale, string(audit),
	)
	if err != nil {
		return fmt.Errorf("failed to record decision %s: %w", e.ID, err)
	}
	return nil
}

// List returns matching entries, oldest first
func (j *SQLite) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(f.Symbol))
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	query := `SELECT id, created_at, symbol, action, recommended, outcome, mode, confidence, risk_level,
		position_size, stop_loss, take_profit, reference_price, spread, verified, sources, rationale, audit
		FROM decisions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                        Entry
			created, sources, audit  string
			action, recommended      string
			outcome, mode, riskLevel string
			spread                   sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &created, &e.Symbol, &action, &recommended, &outcome, &mode,
			&e.Confidence, &riskLevel, &e.PositionSize, &e.StopLoss, &e.TakeProfit, &e.ReferencePrice,
			&spread, &e.Verified, &sources, &e.Rationale, &audit); err != nil {
			return nil, err
		}

		e.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("decision %s: bad created_at: %w", e.ID, err)
		}
		e.Action = types.Action(action)
		e.Recommended = types.Action(recommended)
		e.Outcome = types.Outcome(outcome)
		e.Mode = types.Mode(mode)
		e.RiskLevel = types.RiskLevel(riskLevel)
		if spread.Valid {
			v := spread.Float64
			e.Spread = &v
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(audit), &e.Audit); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
