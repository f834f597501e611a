package objectstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// createPARInput is the input for the storage_create_par tool.
type createPARInput struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Name        string `json:"name,omitempty"`
	ExpiryHours int    `json:"expiry_hours,omitempty"`
}

// createPAROutput is the output for the storage_create_par tool.
type createPAROutput struct {
	PAR *PAR `json:"par"`
}

func createPARTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_create_par").
		WithInstruction("Create a preauthenticated request: a time-limited URL granting access to one object without credentials.").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in createPARInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "key": in.Key}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.Key == "" {
				return invalidInput("key is required", echo), nil
			}

			name := in.Name
			if name == "" {
				name = "par-" + in.Key
			}
			expiryHours := in.ExpiryHours
			if expiryHours <= 0 {
				expiryHours = 24
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			par, err := cfg.Provider.CreatePAR(ctx, in.Bucket, in.Key, name, time.Duration(expiryHours)*time.Hour)
			if err != nil {
				return providerFail("create_par", err, echo), nil
			}

			return envelope.Success(createPAROutput{PAR: par})
		}).
		MustBuild()
}

// listPARsOutput is the output for the storage_list_pars tool.
type listPARsOutput struct {
	Bucket string `json:"bucket"`
	PARs   []PAR  `json:"pars"`
	Count  int    `json:"count"`
}

func listPARsTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_pars").
		WithInstruction("List active preauthenticated requests for a bucket.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in bucketInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			pars, err := cfg.Provider.ListPARs(ctx, in.Bucket)
			if err != nil {
				return providerFail("list_pars", err, echo), nil
			}

			return envelope.Success(listPARsOutput{
				Bucket: in.Bucket,
				PARs:   pars,
				Count:  len(pars),
			})
		}).
		MustBuild()
}

// deletePARInput is the input for the storage_delete_par tool.
type deletePARInput struct {
	Bucket string `json:"bucket"`
	PARID  string `json:"par_id"`
}

// deletePAROutput is the output for the storage_delete_par tool.
type deletePAROutput struct {
	Bucket  string `json:"bucket"`
	PARID   string `json:"par_id"`
	Deleted bool   `json:"deleted"`
}

func deletePARTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_delete_par").
		WithInstruction("Revoke a preauthenticated request.").
		Destructive().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in deletePARInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "par_id": in.PARID}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.PARID == "" {
				return invalidInput("par_id is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.DeletePAR(ctx, in.Bucket, in.PARID); err != nil {
				return providerFail("delete_par", err, echo), nil
			}

			return envelope.Success(deletePAROutput{
				Bucket:  in.Bucket,
				PARID:   in.PARID,
				Deleted: true,
			})
		}).
		MustBuild()
}
