// Package engine re-executes verified statements for the SQL panel.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sqlpanel/internal/domain"
	"sqlpanel/internal/sqlfmt"
)

// Result holds the structured output of a re-executed statement.
type Result struct {
	Columns  []string
	Rows     [][]interface{}
	RowCount int
	Elapsed  time.Duration
}

// Engine runs SELECT and EXPLAIN statements against the panel's database.
// Statements run with recording disabled so that re-executions never show up
// in a request's query list.
type Engine struct {
	db     *sql.DB
	driver string
}

func New(db *sql.DB, driverName string) *Engine {
	return &Engine{db: db, driver: driverName}
}

// DriverName returns the driver the engine was opened with.
func (e *Engine) DriverName() string { return e.driver }

// Select executes statement with params and returns every row.
func (e *Engine) Select(ctx context.Context, statement string, params []any) (*Result, error) {
	if !sqlfmt.IsSelect(statement) {
		return nil, domain.ErrValidation("only SELECT statements can be re-executed")
	}
	return e.query(ctx, statement, params)
}

// Explain executes the driver's EXPLAIN form of statement.
func (e *Engine) Explain(ctx context.Context, statement string, params []any) (*Result, error) {
	if !sqlfmt.IsSelect(statement) {
		return nil, domain.ErrValidation("only SELECT statements can be explained")
	}
	return e.query(ctx, ExplainStatement(e.driver, statement), params)
}

// ExplainStatement prefixes statement with the EXPLAIN syntax of driverName.
func ExplainStatement(driverName, statement string) string {
	if driverName == "sqlite3" {
		return "EXPLAIN QUERY PLAN " + statement
	}
	return "EXPLAIN " + statement
}

func (e *Engine) query(ctx context.Context, statement string, params []any) (*Result, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(domain.WithoutRecording(ctx), statement, params...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

func scanRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var resultRows [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// Byte slices from text columns render as strings.
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Columns:  cols,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
