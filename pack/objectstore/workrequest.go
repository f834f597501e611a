package objectstore

import (
	"context"
	"encoding/json"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// Work request tools are read-only status polls. The caller re-invokes
// them until the request reaches a terminal state; no wait loop runs here.

// workRequestInput is the input for tools addressing one work request.
type workRequestInput struct {
	WorkRequestID string `json:"work_request_id"`
}

// getWorkRequestOutput is the output for storage_get_work_request.
type getWorkRequestOutput struct {
	WorkRequest *WorkRequest `json:"work_request"`
}

func getWorkRequestTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_get_work_request").
		WithInstruction("Get the status of an asynchronous storage operation by its work request id.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in workRequestInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"work_request_id": in.WorkRequestID}
			if in.WorkRequestID == "" {
				return invalidInput("work_request_id is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			wr, err := cfg.Provider.GetWorkRequest(ctx, in.WorkRequestID)
			if err != nil {
				return providerFail("get_work_request", err, echo), nil
			}

			return envelope.Success(getWorkRequestOutput{WorkRequest: wr})
		}).
		MustBuild()
}

// listWorkRequestErrorsOutput is the output for storage_list_work_request_errors.
type listWorkRequestErrorsOutput struct {
	WorkRequestID string             `json:"work_request_id"`
	Errors        []WorkRequestError `json:"errors"`
	Count         int                `json:"count"`
}

func listWorkRequestErrorsTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_work_request_errors").
		WithInstruction("List the errors recorded for a work request.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in workRequestInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"work_request_id": in.WorkRequestID}
			if in.WorkRequestID == "" {
				return invalidInput("work_request_id is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			errs, err := cfg.Provider.ListWorkRequestErrors(ctx, in.WorkRequestID)
			if err != nil {
				return providerFail("list_work_request_errors", err, echo), nil
			}

			return envelope.Success(listWorkRequestErrorsOutput{
				WorkRequestID: in.WorkRequestID,
				Errors:        errs,
				Count:         len(errs),
			})
		}).
		MustBuild()
}
