package objectstore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/toolset"
	"github.com/opsforge/opsforge/pack/objectstore"
)

// noWorkRequests simulates a backend with no asynchronous operation API.
type noWorkRequests struct {
	*objectstore.MemoryProvider
}

func (p *noWorkRequests) GetWorkRequest(ctx context.Context, id string) (*objectstore.WorkRequest, error) {
	return nil, envelope.Unsupported("get_work_request", p.Name())
}

func callTool(t *testing.T, set *toolset.Toolset, name, input string) map[string]any {
	t.Helper()

	tl, ok := set.GetTool(name)
	if !ok {
		t.Fatalf("tool %s not found", name)
	}

	out, err := tl.Execute(context.Background(), json.RawMessage(input))
	if err != nil {
		t.Fatalf("Execute(%s) error = %v", name, err)
	}

	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	return result
}

func newWritableSet(t *testing.T) (*toolset.Toolset, *objectstore.MemoryProvider) {
	t.Helper()

	provider := objectstore.NewMemoryProvider()
	set, err := objectstore.New(provider,
		objectstore.WithWriteAccess(),
		objectstore.WithDeleteAccess(),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return set, provider
}

func TestNew_NilProvider(t *testing.T) {
	if _, err := objectstore.New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestNew_ReadOnlyByDefault(t *testing.T) {
	set, err := objectstore.New(objectstore.NewMemoryProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, ok := set.GetTool("storage_list_objects"); !ok {
		t.Error("read tool storage_list_objects should be registered")
	}
	for _, name := range []string{"storage_put_object", "storage_delete_object", "storage_create_bucket"} {
		if _, ok := set.GetTool(name); ok {
			t.Errorf("write tool %s should not be registered in read-only mode", name)
		}
	}
}

func TestNew_WriteWithoutDelete(t *testing.T) {
	set, err := objectstore.New(objectstore.NewMemoryProvider(), objectstore.WithWriteAccess())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, ok := set.GetTool("storage_put_object"); !ok {
		t.Error("storage_put_object should be registered with write access")
	}
	if _, ok := set.GetTool("storage_delete_object"); ok {
		t.Error("storage_delete_object should not be registered without delete access")
	}
}

func TestGetNamespace(t *testing.T) {
	provider := objectstore.NewMemoryProvider(objectstore.WithNamespace("tenancy-a"))
	set, err := objectstore.New(provider)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "storage_get_namespace", `{}`)
	if result["status"] != "success" {
		t.Fatalf("status = %v, want success (%v)", result["status"], result)
	}
	if result["namespace"] != "tenancy-a" {
		t.Errorf("namespace = %v, want tenancy-a", result["namespace"])
	}
}

func TestBucketLifecycle(t *testing.T) {
	set, _ := newWritableSet(t)

	result := callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)
	if result["status"] != "success" {
		t.Fatalf("create_bucket status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_get_bucket", `{"bucket":"data"}`)
	if result["status"] != "success" {
		t.Fatalf("get_bucket status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_list_buckets", `{}`)
	if result["count"] != float64(1) {
		t.Errorf("list_buckets count = %v, want 1", result["count"])
	}

	result = callTool(t, set, "storage_delete_bucket", `{"bucket":"data"}`)
	if result["status"] != "success" {
		t.Fatalf("delete_bucket status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_get_bucket", `{"bucket":"data"}`)
	if result["status"] != "error" {
		t.Errorf("get_bucket after delete status = %v, want error", result["status"])
	}
}

func TestGetBucket_MissingName(t *testing.T) {
	set, _ := newWritableSet(t)

	result := callTool(t, set, "storage_get_bucket", `{}`)
	if result["status"] != "error" {
		t.Fatalf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "invalid_input" {
		t.Errorf("error_kind = %v, want invalid_input", result["error_kind"])
	}
}

func TestObjectLifecycle(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	result := callTool(t, set, "storage_put_object", `{"bucket":"data","key":"reports/q1.csv","content":"a,b\n1,2\n","content_type":"text/csv"}`)
	if result["status"] != "success" {
		t.Fatalf("put_object status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_get_object", `{"bucket":"data","key":"reports/q1.csv"}`)
	if result["status"] != "success" {
		t.Fatalf("get_object status = %v (%v)", result["status"], result)
	}
	if result["content"] != "a,b\n1,2\n" {
		t.Errorf("content = %q", result["content"])
	}
	if result["content_type"] != "text/csv" {
		t.Errorf("content_type = %v, want text/csv", result["content_type"])
	}

	result = callTool(t, set, "storage_head_object", `{"bucket":"data","key":"reports/q1.csv"}`)
	if result["status"] != "success" {
		t.Fatalf("head_object status = %v (%v)", result["status"], result)
	}
	if result["metadata"] == nil {
		t.Error("head_object metadata missing")
	}

	result = callTool(t, set, "storage_list_objects", `{"bucket":"data","prefix":"reports/"}`)
	if result["count"] != float64(1) {
		t.Errorf("list_objects count = %v, want 1", result["count"])
	}

	result = callTool(t, set, "storage_copy_object", `{"source_bucket":"data","source_key":"reports/q1.csv","target_key":"archive/q1.csv"}`)
	if result["status"] != "success" {
		t.Fatalf("copy_object status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_delete_object", `{"bucket":"data","key":"reports/q1.csv"}`)
	if result["status"] != "success" {
		t.Fatalf("delete_object status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_list_objects", `{"bucket":"data"}`)
	if result["count"] != float64(1) {
		t.Errorf("count after delete = %v, want 1 (the copy)", result["count"])
	}
}

func TestGetObject_Truncation(t *testing.T) {
	provider := objectstore.NewMemoryProvider()
	set, err := objectstore.New(provider,
		objectstore.WithWriteAccess(),
		objectstore.WithMaxObjectSize(4),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)
	callTool(t, set, "storage_put_object", `{"bucket":"data","key":"big.txt","content":"0123456789"}`)

	result := callTool(t, set, "storage_get_object", `{"bucket":"data","key":"big.txt"}`)
	if result["status"] != "success" {
		t.Fatalf("status = %v (%v)", result["status"], result)
	}
	if result["content"] != "0123" {
		t.Errorf("content = %q, want %q", result["content"], "0123")
	}
	if result["truncated"] != true {
		t.Error("truncated should be true")
	}
}

func TestGetObject_NotFound(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	result := callTool(t, set, "storage_get_object", `{"bucket":"data","key":"missing"}`)
	if result["status"] != "error" {
		t.Fatalf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "provider_error" {
		t.Errorf("error_kind = %v, want provider_error", result["error_kind"])
	}
	// Inputs are echoed for correlation.
	if result["bucket"] != "data" || result["key"] != "missing" {
		t.Errorf("echoed inputs missing: %v", result)
	}
}

func TestMultipartUploadFlow(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	result := callTool(t, set, "storage_create_multipart_upload", `{"bucket":"data","key":"big.bin"}`)
	if result["status"] != "success" {
		t.Fatalf("create status = %v (%v)", result["status"], result)
	}
	upload := result["upload"].(map[string]any)
	uploadID := upload["upload_id"].(string)

	var parts []map[string]any
	for i, chunk := range []string{"alpha-", "beta-", "gamma"} {
		input := fmt.Sprintf(`{"bucket":"data","key":"big.bin","upload_id":%q,"part_number":%d,"content":%q}`, uploadID, i+1, chunk)
		result = callTool(t, set, "storage_upload_part", input)
		if result["status"] != "success" {
			t.Fatalf("upload_part %d status = %v (%v)", i+1, result["status"], result)
		}
		parts = append(parts, result["part"].(map[string]any))
	}

	result = callTool(t, set, "storage_list_parts", fmt.Sprintf(`{"bucket":"data","key":"big.bin","upload_id":%q}`, uploadID))
	if result["count"] != float64(3) {
		t.Errorf("list_parts count = %v, want 3", result["count"])
	}

	commit := map[string]any{
		"bucket":    "data",
		"key":       "big.bin",
		"upload_id": uploadID,
		"parts": []map[string]any{
			{"part_number": 1, "etag": parts[0]["etag"]},
			{"part_number": 2, "etag": parts[1]["etag"]},
			{"part_number": 3, "etag": parts[2]["etag"]},
		},
	}
	raw, _ := json.Marshal(commit)
	result = callTool(t, set, "storage_commit_multipart_upload", string(raw))
	if result["status"] != "success" {
		t.Fatalf("commit status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_get_object", `{"bucket":"data","key":"big.bin"}`)
	if result["content"] != "alpha-beta-gamma" {
		t.Errorf("assembled content = %q", result["content"])
	}
}

// A failed middle step must not trigger automatic compensation: the
// upload stays open and abort remains the caller's decision.
func TestMultipartFailureDoesNotAutoAbort(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	result := callTool(t, set, "storage_create_multipart_upload", `{"bucket":"data","key":"big.bin"}`)
	uploadID := result["upload"].(map[string]any)["upload_id"].(string)

	callTool(t, set, "storage_upload_part", fmt.Sprintf(`{"bucket":"data","key":"big.bin","upload_id":%q,"part_number":1,"content":"chunk"}`, uploadID))

	// Committing a part that was never uploaded fails.
	result = callTool(t, set, "storage_commit_multipart_upload", fmt.Sprintf(`{"bucket":"data","key":"big.bin","upload_id":%q,"parts":[{"part_number":1},{"part_number":2}]}`, uploadID))
	if result["status"] != "error" {
		t.Fatalf("commit with missing part should fail, got %v", result)
	}

	// The upload is still listed: nothing aborted it.
	result = callTool(t, set, "storage_list_multipart_uploads", `{"bucket":"data"}`)
	if result["count"] != float64(1) {
		t.Fatalf("upload should still be open after failed commit, count = %v", result["count"])
	}

	// An explicit abort is the caller's move.
	result = callTool(t, set, "storage_abort_multipart_upload", fmt.Sprintf(`{"bucket":"data","key":"big.bin","upload_id":%q}`, uploadID))
	if result["status"] != "success" {
		t.Fatalf("abort status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_list_multipart_uploads", `{"bucket":"data"}`)
	if result["count"] != float64(0) {
		t.Errorf("count after abort = %v, want 0", result["count"])
	}
}

func TestPARLifecycle(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)
	callTool(t, set, "storage_put_object", `{"bucket":"data","key":"doc.pdf","content":"pdf"}`)

	result := callTool(t, set, "storage_create_par", `{"bucket":"data","key":"doc.pdf","name":"share","expiry_hours":2}`)
	if result["status"] != "success" {
		t.Fatalf("create_par status = %v (%v)", result["status"], result)
	}
	par := result["par"].(map[string]any)
	if par["url"] == "" {
		t.Error("par url missing")
	}
	parID := par["id"].(string)

	result = callTool(t, set, "storage_list_pars", `{"bucket":"data"}`)
	if result["count"] != float64(1) {
		t.Errorf("list_pars count = %v, want 1", result["count"])
	}

	result = callTool(t, set, "storage_delete_par", fmt.Sprintf(`{"bucket":"data","par_id":%q}`, parID))
	if result["status"] != "success" {
		t.Fatalf("delete_par status = %v (%v)", result["status"], result)
	}

	result = callTool(t, set, "storage_list_pars", `{"bucket":"data"}`)
	if result["count"] != float64(0) {
		t.Errorf("list_pars count after delete = %v, want 0", result["count"])
	}
}

func TestRetentionRules(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	result := callTool(t, set, "storage_put_retention_rule", `{"bucket":"data","display_name":"hold","duration_days":30}`)
	if result["status"] != "success" {
		t.Fatalf("put_retention_rule status = %v (%v)", result["status"], result)
	}
	rule := result["rule"].(map[string]any)
	ruleID := rule["id"].(string)

	result = callTool(t, set, "storage_list_retention_rules", `{"bucket":"data"}`)
	if result["count"] != float64(1) {
		t.Errorf("list count = %v, want 1", result["count"])
	}

	result = callTool(t, set, "storage_put_retention_rule", `{"bucket":"data","duration_days":0}`)
	if result["error_kind"] != "invalid_input" {
		t.Errorf("zero duration error_kind = %v, want invalid_input", result["error_kind"])
	}

	result = callTool(t, set, "storage_delete_retention_rule", fmt.Sprintf(`{"bucket":"data","rule_id":%q}`, ruleID))
	if result["status"] != "success" {
		t.Fatalf("delete status = %v (%v)", result["status"], result)
	}
}

func TestLockedRetentionRuleCannotBeDeleted(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	result := callTool(t, set, "storage_put_retention_rule", `{"bucket":"data","duration_days":365,"locked":true}`)
	ruleID := result["rule"].(map[string]any)["id"].(string)

	result = callTool(t, set, "storage_delete_retention_rule", fmt.Sprintf(`{"bucket":"data","rule_id":%q}`, ruleID))
	if result["status"] != "error" {
		t.Errorf("deleting a locked rule should fail, got %v", result)
	}
}

func TestReplicationPolicies(t *testing.T) {
	set, _ := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	result := callTool(t, set, "storage_create_replication_policy", `{"bucket":"data","name":"dr","destination_region":"eu-west-1","destination_bucket":"data-replica"}`)
	if result["status"] != "success" {
		t.Fatalf("create status = %v (%v)", result["status"], result)
	}
	policy := result["policy"].(map[string]any)
	if policy["status"] != "ACTIVE" {
		t.Errorf("policy status = %v, want ACTIVE", policy["status"])
	}
	policyID := policy["id"].(string)

	result = callTool(t, set, "storage_list_replication_policies", `{"bucket":"data"}`)
	if result["count"] != float64(1) {
		t.Errorf("list count = %v, want 1", result["count"])
	}

	result = callTool(t, set, "storage_delete_replication_policy", fmt.Sprintf(`{"bucket":"data","policy_id":%q}`, policyID))
	if result["status"] != "success" {
		t.Fatalf("delete status = %v (%v)", result["status"], result)
	}
}

func TestWorkRequests(t *testing.T) {
	set, provider := newWritableSet(t)
	callTool(t, set, "storage_create_bucket", `{"bucket":"data"}`)

	ids := provider.WorkRequestIDs()
	if len(ids) == 0 {
		t.Fatal("bucket creation should record a work request")
	}

	result := callTool(t, set, "storage_get_work_request", fmt.Sprintf(`{"work_request_id":%q}`, ids[0]))
	if result["status"] != "success" {
		t.Fatalf("get status = %v (%v)", result["status"], result)
	}
	wr := result["work_request"].(map[string]any)
	if wr["status"] != "COMPLETED" {
		t.Errorf("work request status = %v, want COMPLETED", wr["status"])
	}

	failedID := provider.FailWorkRequest("COPY_OBJECT", "SourceUnreadable", "source object is archived")
	result = callTool(t, set, "storage_list_work_request_errors", fmt.Sprintf(`{"work_request_id":%q}`, failedID))
	if result["count"] != float64(1) {
		t.Fatalf("errors count = %v, want 1 (%v)", result["count"], result)
	}

	result = callTool(t, set, "storage_get_work_request", `{"work_request_id":"nope"}`)
	if result["status"] != "error" {
		t.Errorf("unknown id should fail, got %v", result)
	}
}

// Backends that cannot express an operation surface a tagged unsupported
// error; the facade keeps the kind instead of reclassifying it.
func TestUnsupportedOperationKind(t *testing.T) {
	provider := &noWorkRequests{MemoryProvider: objectstore.NewMemoryProvider()}
	set, err := objectstore.New(provider)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "storage_get_work_request", `{"work_request_id":"wr-1"}`)
	if result["status"] != "error" {
		t.Fatalf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "unsupported" {
		t.Errorf("error_kind = %v, want unsupported", result["error_kind"])
	}
	if msg, _ := result["message"].(string); !strings.Contains(msg, "get_work_request") {
		t.Errorf("message should name the operation, got %q", msg)
	}
}
