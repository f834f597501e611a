package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// distinctInput is the input for the distinct_values tool.
type distinctInput struct {
	Table        string `json:"table"`
	Column       string `json:"column"`
	MatchType    string `json:"match_type,omitempty"`
	MatchPattern string `json:"match_pattern,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

func (in *distinctInput) echo() map[string]any {
	return map[string]any{"table": in.Table, "column": in.Column}
}

// distinctOutput is the output for the distinct_values tool.
type distinctOutput struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	Values    []any  `json:"values"`
	Count     int    `json:"count"`
	Truncated bool   `json:"truncated,omitempty"`
}

func distinctValuesTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("distinct_values").
		WithInstruction("List the distinct values of a column, optionally filtered by a case-insensitive exact, contains, prefix, or regex match.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in distinctInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := in.echo()
			if in.Table == "" || in.Column == "" {
				return invalidInput("table and column are required", echo), nil
			}
			table, err := quoteIdent(in.Table)
			if err != nil {
				return invalidInput(err.Error(), echo), nil
			}
			column, err := quoteIdent(in.Column)
			if err != nil {
				return invalidInput(err.Error(), echo), nil
			}

			matchType := strings.ToLower(strings.TrimSpace(in.MatchType))
			if matchType == "" {
				matchType = "exact"
			}

			query := fmt.Sprintf("SELECT DISTINCT %s FROM %s", column, table)
			var args []any
			var pattern *regexp.Regexp

			if in.MatchPattern != "" {
				switch matchType {
				case "exact":
					query += fmt.Sprintf(" WHERE LOWER(%s) = ?", column)
					args = append(args, strings.ToLower(in.MatchPattern))
				case "contains":
					query += fmt.Sprintf(" WHERE LOWER(%s) LIKE ?", column)
					args = append(args, "%"+strings.ToLower(in.MatchPattern)+"%")
				case "prefix":
					query += fmt.Sprintf(" WHERE LOWER(%s) LIKE ?", column)
					args = append(args, strings.ToLower(in.MatchPattern)+"%")
				case "regex":
					// Regex support varies per engine, so filtering happens
					// client side over the distinct values.
					pattern, err = regexp.Compile("(?i)" + in.MatchPattern)
					if err != nil {
						return invalidInput(fmt.Sprintf("invalid match_pattern: %v", err), echo), nil
					}
				default:
					return invalidInput(fmt.Sprintf("unsupported match_type %q (want exact, contains, prefix, or regex)", in.MatchType), echo), nil
				}
			} else if matchType != "exact" && matchType != "contains" && matchType != "prefix" && matchType != "regex" {
				return invalidInput(fmt.Sprintf("unsupported match_type %q (want exact, contains, prefix, or regex)", in.MatchType), echo), nil
			}
			query += " ORDER BY 1"

			ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
			defer cancel()

			limit := clampLimit(in.Limit, cfg.MaxRows)

			// The regex path scans the full distinct set and filters here,
			// so the row cap applies after filtering.
			scanLimit := limit
			if pattern != nil {
				scanLimit = cfg.MaxRows
			}

			result, err := runQuery(ctx, cfg.DB, query, args, scanLimit)
			if err != nil {
				return providerFail("distinct_values", err, echo), nil
			}
			if len(result.Columns) == 0 {
				return providerFail("distinct_values", fmt.Errorf("query returned no columns"), echo), nil
			}

			out := distinctOutput{
				Table:  in.Table,
				Column: in.Column,
				Values: make([]any, 0, len(result.Rows)),
			}
			col := result.Columns[0]
			for _, row := range result.Rows {
				v := row[col]
				if pattern != nil && !pattern.MatchString(fmt.Sprint(v)) {
					continue
				}
				if len(out.Values) >= limit {
					out.Truncated = true
					break
				}
				out.Values = append(out.Values, v)
			}
			out.Count = len(out.Values)
			out.Truncated = out.Truncated || result.Truncated

			return envelope.Success(out)
		}).
		MustBuild()
}

// rangeInput is the input for the value_range tool.
type rangeInput struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// rangeOutput is the output for the value_range tool.
type rangeOutput struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Min    any    `json:"min"`
	Max    any    `json:"max"`
}

func valueRangeTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("value_range").
		WithInstruction("Return the minimum and maximum value of a column.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in rangeInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"table": in.Table, "column": in.Column}
			if in.Table == "" || in.Column == "" {
				return invalidInput("table and column are required", echo), nil
			}
			table, err := quoteIdent(in.Table)
			if err != nil {
				return invalidInput(err.Error(), echo), nil
			}
			column, err := quoteIdent(in.Column)
			if err != nil {
				return invalidInput(err.Error(), echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
			defer cancel()

			query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", column, column, table)

			var min, max any
			if err := cfg.DB.QueryRowContext(ctx, query).Scan(&min, &max); err != nil {
				return providerFail("value_range", err, echo), nil
			}

			return envelope.Success(rangeOutput{
				Table:  in.Table,
				Column: in.Column,
				Min:    jsonValue(min),
				Max:    jsonValue(max),
			})
		}).
		MustBuild()
}
