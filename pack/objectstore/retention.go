package objectstore

import (
	"context"
	"encoding/json"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// listRetentionRulesOutput is the output for storage_list_retention_rules.
type listRetentionRulesOutput struct {
	Bucket string          `json:"bucket"`
	Rules  []RetentionRule `json:"rules"`
	Count  int             `json:"count"`
}

func listRetentionRulesTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_retention_rules").
		WithInstruction("List retention rules on a bucket.").
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

			rules, err := cfg.Provider.ListRetentionRules(ctx, in.Bucket)
			if err != nil {
				return providerFail("list_retention_rules", err, echo), nil
			}

			return envelope.Success(listRetentionRulesOutput{
				Bucket: in.Bucket,
				Rules:  rules,
				Count:  len(rules),
			})
		}).
		MustBuild()
}

// putRetentionRuleInput is the input for storage_put_retention_rule.
type putRetentionRuleInput struct {
	Bucket       string `json:"bucket"`
	RuleID       string `json:"rule_id,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	DurationDays int    `json:"duration_days"`
	Locked       bool   `json:"locked,omitempty"`
}

// putRetentionRuleOutput is the output for storage_put_retention_rule.
type putRetentionRuleOutput struct {
	Bucket string         `json:"bucket"`
	Rule   *RetentionRule `json:"rule"`
}

func putRetentionRuleTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_put_retention_rule").
		WithInstruction("Create or replace a retention rule on a bucket. Duration is in days.").
		Idempotent().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in putRetentionRuleInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "rule_id": in.RuleID}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.DurationDays < 1 {
				return invalidInput("duration_days must be at least 1", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			rule, err := cfg.Provider.PutRetentionRule(ctx, in.Bucket, RetentionRule{
				ID:           in.RuleID,
				DisplayName:  in.DisplayName,
				DurationDays: in.DurationDays,
				Locked:       in.Locked,
			})
			if err != nil {
				return providerFail("put_retention_rule", err, echo), nil
			}

			return envelope.Success(putRetentionRuleOutput{
				Bucket: in.Bucket,
				Rule:   rule,
			})
		}).
		MustBuild()
}

// deleteRetentionRuleInput is the input for storage_delete_retention_rule.
type deleteRetentionRuleInput struct {
	Bucket string `json:"bucket"`
	RuleID string `json:"rule_id"`
}

// deleteRetentionRuleOutput is the output for storage_delete_retention_rule.
type deleteRetentionRuleOutput struct {
	Bucket  string `json:"bucket"`
	RuleID  string `json:"rule_id"`
	Deleted bool   `json:"deleted"`
}

func deleteRetentionRuleTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_delete_retention_rule").
		WithInstruction("Remove a retention rule from a bucket. Locked rules cannot be removed.").
		Destructive().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in deleteRetentionRuleInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "rule_id": in.RuleID}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.RuleID == "" {
				return invalidInput("rule_id is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.DeleteRetentionRule(ctx, in.Bucket, in.RuleID); err != nil {
				return providerFail("delete_retention_rule", err, echo), nil
			}

			return envelope.Success(deleteRetentionRuleOutput{
				Bucket:  in.Bucket,
				RuleID:  in.RuleID,
				Deleted: true,
			})
		}).
		MustBuild()
}

// listReplicationPoliciesOutput is the output for storage_list_replication_policies.
type listReplicationPoliciesOutput struct {
	Bucket   string              `json:"bucket"`
	Policies []ReplicationPolicy `json:"policies"`
	Count    int                 `json:"count"`
}

func listReplicationPoliciesTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_replication_policies").
		WithInstruction("List replication policies on a bucket.").
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

			policies, err := cfg.Provider.ListReplicationPolicies(ctx, in.Bucket)
			if err != nil {
				return providerFail("list_replication_policies", err, echo), nil
			}

			return envelope.Success(listReplicationPoliciesOutput{
				Bucket:   in.Bucket,
				Policies: policies,
				Count:    len(policies),
			})
		}).
		MustBuild()
}

// createReplicationPolicyInput is the input for storage_create_replication_policy.
type createReplicationPolicyInput struct {
	Bucket            string `json:"bucket"`
	Name              string `json:"name"`
	DestinationRegion string `json:"destination_region,omitempty"`
	DestinationBucket string `json:"destination_bucket"`
}

// createReplicationPolicyOutput is the output for storage_create_replication_policy.
type createReplicationPolicyOutput struct {
	Bucket string             `json:"bucket"`
	Policy *ReplicationPolicy `json:"policy"`
}

func createReplicationPolicyTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_create_replication_policy").
		WithInstruction("Create a replication policy copying new objects from a bucket to a destination bucket.").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in createReplicationPolicyInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{
				"bucket":             in.Bucket,
				"name":               in.Name,
				"destination_bucket": in.DestinationBucket,
			}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.Name == "" {
				return invalidInput("name is required", echo), nil
			}
			if in.DestinationBucket == "" {
				return invalidInput("destination_bucket is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			policy, err := cfg.Provider.CreateReplicationPolicy(ctx, in.Bucket, ReplicationPolicy{
				Name:              in.Name,
				DestinationRegion: in.DestinationRegion,
				DestinationBucket: in.DestinationBucket,
			})
			if err != nil {
				return providerFail("create_replication_policy", err, echo), nil
			}

			return envelope.Success(createReplicationPolicyOutput{
				Bucket: in.Bucket,
				Policy: policy,
			})
		}).
		MustBuild()
}

// deleteReplicationPolicyInput is the input for storage_delete_replication_policy.
type deleteReplicationPolicyInput struct {
	Bucket   string `json:"bucket"`
	PolicyID string `json:"policy_id"`
}

// deleteReplicationPolicyOutput is the output for storage_delete_replication_policy.
type deleteReplicationPolicyOutput struct {
	Bucket   string `json:"bucket"`
	PolicyID string `json:"policy_id"`
	Deleted  bool   `json:"deleted"`
}

func deleteReplicationPolicyTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_delete_replication_policy").
		WithInstruction("Remove a replication policy from a bucket.").
		Destructive().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in deleteReplicationPolicyInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "policy_id": in.PolicyID}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.PolicyID == "" {
				return invalidInput("policy_id is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.DeleteReplicationPolicy(ctx, in.Bucket, in.PolicyID); err != nil {
				return providerFail("delete_replication_policy", err, echo), nil
			}

			return envelope.Success(deleteReplicationPolicyOutput{
				Bucket:   in.Bucket,
				PolicyID: in.PolicyID,
				Deleted:  true,
			})
		}).
		MustBuild()
}
