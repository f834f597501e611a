package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// chartInput is the input for the chart_json tool.
type chartInput struct {
	Query     string `json:"query"`
	ChartType string `json:"chart_type,omitempty"`
	Title     string `json:"title,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// chartOutput is the output for the chart_json tool.
type chartOutput struct {
	ChartType string          `json:"chart_type"`
	Title     string          `json:"title,omitempty"`
	RowCount  int             `json:"row_count"`
	Option    json.RawMessage `json:"option"`
}

// chartJSONTool renders a two-column query result as an ECharts option
// document. The first column supplies labels, the second values.
func chartJSONTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("chart_json").
		WithInstruction("Run a SELECT returning label and value columns and render the result as chart option JSON (bar, line, or pie).").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in chartInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"query": in.Query, "chart_type": in.ChartType}
			if strings.TrimSpace(in.Query) == "" {
				return invalidInput("query is required", echo), nil
			}
			if !isSelect(in.Query) {
				return invalidInput("chart_json only accepts SELECT statements", echo), nil
			}

			chartType := strings.ToLower(strings.TrimSpace(in.ChartType))
			if chartType == "" {
				chartType = "bar"
			}
			switch chartType {
			case "bar", "line", "pie":
			default:
				return invalidInput(fmt.Sprintf("unsupported chart_type %q (want bar, line, or pie)", in.ChartType), echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
			defer cancel()

			result, err := runQuery(ctx, cfg.DB, in.Query, nil, clampLimit(in.Limit, cfg.MaxRows))
			if err != nil {
				return providerFail("chart_json", err, echo), nil
			}
			if len(result.Columns) < 2 {
				return invalidInput("query must return at least two columns (labels, values)", echo), nil
			}

			labelCol, valueCol := result.Columns[0], result.Columns[1]
			labels := make([]string, 0, len(result.Rows))
			values := make([]any, 0, len(result.Rows))
			for _, row := range result.Rows {
				labels = append(labels, fmt.Sprint(row[labelCol]))
				values = append(values, row[valueCol])
			}

			option, err := renderOption(chartType, in.Title, labels, values)
			if err != nil {
				return providerFail("chart_json", err, echo), nil
			}

			return envelope.Success(chartOutput{
				ChartType: chartType,
				Title:     in.Title,
				RowCount:  len(result.Rows),
				Option:    option,
			})
		}).
		MustBuild()
}

// renderOption builds the go-echarts option map and serializes it.
func renderOption(chartType, title string, labels []string, values []any) (json.RawMessage, error) {
	var option map[string]any

	switch chartType {
	case "bar":
		bar := charts.NewBar()
		bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))
		data := make([]opts.BarData, len(values))
		for i, v := range values {
			data[i] = opts.BarData{Value: v}
		}
		bar.SetXAxis(labels).AddSeries("values", data)
		bar.Validate()
		option = bar.JSON()
	case "line":
		line := charts.NewLine()
		line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Value: v}
		}
		line.SetXAxis(labels).AddSeries("values", data)
		line.Validate()
		option = line.JSON()
	case "pie":
		pie := charts.NewPie()
		pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))
		data := make([]opts.PieData, len(values))
		for i, v := range values {
			data[i] = opts.PieData{Name: labels[i], Value: v}
		}
		pie.AddSeries("values", data)
		pie.Validate()
		option = pie.JSON()
	default:
		return nil, fmt.Errorf("unknown chart type %q", chartType)
	}

	raw, err := json.Marshal(option)
	if err != nil {
		return nil, fmt.Errorf("serialize chart option: %w", err)
	}
	return raw, nil
}
