// Package database provides SQL tools: natural language to SQL, guarded
// query execution, and value discovery over a database/sql pool.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/domain/toolset"
)

// Config configures the database pack.
type Config struct {
	// DB is the database connection pool (required).
	DB *sql.DB

	// Generator produces SQL from natural language prompts. When nil the
	// nl2sql_run tool is not registered.
	Generator Generator

	// Agent is the owning agent name, echoed in error envelopes.
	Agent string

	// QueryTimeout is the per-call timeout (default: 30s).
	QueryTimeout time.Duration

	// MaxRows caps the number of rows any tool returns (default: 1000).
	MaxRows int
}

// Option configures the database pack.
type Option func(*Config)

// WithGenerator enables the nl2sql_run tool.
func WithGenerator(g Generator) Option {
	return func(c *Config) {
		c.Generator = g
	}
}

// WithAgent sets the owning agent name.
func WithAgent(agent string) Option {
	return func(c *Config) {
		c.Agent = agent
	}
}

// WithQueryTimeout sets the per-call timeout.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.QueryTimeout = timeout
	}
}

// WithMaxRows caps the rows any tool returns.
func WithMaxRows(max int) Option {
	return func(c *Config) {
		c.MaxRows = max
	}
}

// New creates the database toolset.
func New(db *sql.DB, opts ...Option) (*toolset.Toolset, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}

	cfg := Config{
		DB:           db,
		QueryTimeout: 30 * time.Second,
		MaxRows:      1000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := toolset.NewBuilder("database").
		WithAgent(cfg.Agent).
		WithDescription("SQL query and discovery tools").
		WithVersion("1.0.0").
		AddTools(
			sqlRunTool(&cfg),
			distinctValuesTool(&cfg),
			valueRangeTool(&cfg),
			chartJSONTool(&cfg),
		)

	if cfg.Generator != nil {
		builder = builder.AddTools(nl2sqlRunTool(&cfg))
	}

	return builder.Build(), nil
}

// providerFail passes tagged errors through unchanged and wraps raw driver
// errors as provider errors naming the operation.
func providerFail(op string, err error, echo map[string]any) json.RawMessage {
	var tagged *envelope.Error
	if errors.As(err, &tagged) {
		return envelope.Fail(err, echo)
	}
	return envelope.Fail(envelope.Wrap(envelope.KindProvider, op+" failed", err), echo)
}

func invalidInput(msg string, echo map[string]any) json.RawMessage {
	return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, msg), echo)
}

func badInput(err error) json.RawMessage {
	return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid input", err), nil)
}

// identPattern admits plain and schema-qualified SQL identifiers. Table and
// column names arrive as data, so they are validated and quoted rather than
// spliced in raw.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// quoteIdent validates an identifier and returns it double-quoted part by
// part, so "sales.orders" becomes "sales"."orders".
func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, "."), nil
}

// rowSet is the tabular result shape shared by the query tools.
type rowSet struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated,omitempty"`
}

// runQuery executes a query and scans up to limit rows into a rowSet.
func runQuery(ctx context.Context, db *sql.DB, query string, args []any, limit int) (*rowSet, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := &rowSet{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		if len(out.Rows) >= limit {
			out.Truncated = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = jsonValue(values[i])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out.RowCount = len(out.Rows)
	return out, nil
}

// jsonValue makes driver values JSON-serializable.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// isSelect reports whether the statement is a read (SELECT or WITH prefixed).
func isSelect(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

// clampLimit resolves a caller limit against the configured cap.
func clampLimit(requested, max int) int {
	if requested > 0 && requested < max {
		return requested
	}
	return max
}

// sqlRunInput is the input for the sql_run tool.
type sqlRunInput struct {
	Query string `json:"query"`
	Args  []any  `json:"args,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// sqlRunOutput is the output for the sql_run tool.
type sqlRunOutput struct {
	SQLQuery  string  `json:"sql_query"`
	SQLResult *rowSet `json:"sql_result"`
}

func sqlRunTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("sql_run").
		WithInstruction("Run a SELECT statement and return its rows. Modifications are rejected.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in sqlRunInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"query": in.Query}
			if strings.TrimSpace(in.Query) == "" {
				return invalidInput("query is required", echo), nil
			}
			if !isSelect(in.Query) {
				return invalidInput("sql_run only accepts SELECT statements", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
			defer cancel()

			result, err := runQuery(ctx, cfg.DB, in.Query, in.Args, clampLimit(in.Limit, cfg.MaxRows))
			if err != nil {
				return providerFail("sql_run", err, echo), nil
			}

			return envelope.Success(sqlRunOutput{
				SQLQuery:  in.Query,
				SQLResult: result,
			})
		}).
		MustBuild()
}

// nl2sqlInput is the input for the nl2sql_run tool.
type nl2sqlInput struct {
	Prompt string `json:"prompt"`
	Limit  int    `json:"limit,omitempty"`
}

func nl2sqlRunTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("nl2sql_run").
		WithInstruction("Generate SQL from a natural language prompt, run it with a row cap, and return both the SQL and its rows.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in nl2sqlInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"prompt": in.Prompt}
			if strings.TrimSpace(in.Prompt) == "" {
				return invalidInput("prompt is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
			defer cancel()

			generated, err := cfg.Generator.GenerateSQL(ctx, in.Prompt)
			if err != nil {
				if errors.Is(err, ErrCouldNotGenerate) {
					return envelope.Fail(envelope.Wrap(envelope.KindCouldNotGenerate, err.Error(), err), echo), nil
				}
				return providerFail("nl2sql generation", err, echo), nil
			}
			if !isSelect(generated) {
				return envelope.Fail(envelope.Errorf(envelope.KindCouldNotGenerate,
					"generator produced a non-SELECT statement"), echo), nil
			}

			limit := clampLimit(in.Limit, cfg.MaxRows)
			wrapped := fmt.Sprintf("SELECT * FROM (%s) AS nl2sql_result LIMIT %d",
				strings.TrimRight(strings.TrimSpace(generated), ";"), limit)

			result, err := runQuery(ctx, cfg.DB, wrapped, nil, limit)
			if err != nil {
				return providerFail("nl2sql execution", err, echo), nil
			}

			return envelope.Success(sqlRunOutput{
				SQLQuery:  wrapped,
				SQLResult: result,
			})
		}).
		MustBuild()
}
