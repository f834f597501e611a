// Package workflow provides the statekit statechart for multipart uploads.
//
// The facade tools expose each multipart step independently and never
// compensate; this machine is the opt-in alternative that sequences
// create, upload, and commit, and runs an explicit abort on failure.
package workflow

import (
	"context"

	"github.com/felixgeelhaar/statekit"

	"github.com/opsforge/opsforge/infrastructure/logging"
	"github.com/opsforge/opsforge/pack/objectstore"
)

// Upload lifecycle states.
const (
	StateCreated    statekit.StateID = "created"
	StateUploading  statekit.StateID = "uploading"
	StateCommitting statekit.StateID = "committing"
	StateDone       statekit.StateID = "done"
	StateFailed     statekit.StateID = "failed"
	StateAborted    statekit.StateID = "aborted"
)

// Machine events.
const (
	eventUpload   statekit.EventType = "UPLOAD"
	eventCommit   statekit.EventType = "COMMIT"
	eventComplete statekit.EventType = "COMPLETE"
	eventFail     statekit.EventType = "FAIL"
	eventAbort    statekit.EventType = "ABORT"
)

// Context carries upload state through the machine. The workflow drives the
// machine from a single goroutine, so fields are set before each Send.
type Context struct {
	Provider objectstore.Provider
	Bucket   string
	Key      string
	UploadID string

	Parts []objectstore.CommitPart
	ETag  string

	// FailureErr is the step error that triggered the FAIL event.
	FailureErr error

	// AbortErr records a failed compensation; the upload is then orphaned
	// on the provider and needs manual cleanup.
	AbortErr error

	// callCtx is the caller's context for the compensating provider call.
	callCtx context.Context
}

// newUploadMachine builds the multipart statechart. Both failure paths run
// the abort action: failed is reached when a step errors, aborted when the
// caller cancels explicitly.
func newUploadMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("multipart-upload").
		WithInitial(StateCreated).
		WithContext(&Context{}).
		WithAction("abort", abortUpload).
		State(StateCreated).
			On(eventUpload).Target(StateUploading).
			On(eventCommit).Target(StateCommitting).
			On(eventFail).Target(StateFailed).Do("abort").
			On(eventAbort).Target(StateAborted).Do("abort").
			Done().
		State(StateUploading).
			On(eventUpload).Target(StateUploading).
			On(eventCommit).Target(StateCommitting).
			On(eventFail).Target(StateFailed).Do("abort").
			On(eventAbort).Target(StateAborted).Do("abort").
			Done().
		State(StateCommitting).
			On(eventComplete).Target(StateDone).
			On(eventFail).Target(StateFailed).Do("abort").
			On(eventAbort).Target(StateAborted).Do("abort").
			Done().
		State(StateDone).
			Final().
			Done().
		State(StateFailed).
			Final().
			Done().
		State(StateAborted).
			Final().
			Done().
		Build()
}

// abortUpload is the compensation action: it abandons the provider-side
// upload. Without an upload id there is nothing to compensate.
func abortUpload(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	c := *ctx
	if c.UploadID == "" || c.Provider == nil {
		return
	}

	callCtx := c.callCtx
	if callCtx == nil {
		callCtx = context.Background()
	}

	if err := c.Provider.AbortMultipartUpload(callCtx, c.Bucket, c.Key, c.UploadID); err != nil {
		c.AbortErr = err
		logging.Error().
			Add(logging.Bucket(c.Bucket)).
			Add(logging.ObjectName(c.Key)).
			Add(logging.UploadID(c.UploadID)).
			Add(logging.ErrorField(err)).
			Msg("multipart abort failed, upload orphaned")
		return
	}

	logging.Info().
		Add(logging.Bucket(c.Bucket)).
		Add(logging.ObjectName(c.Key)).
		Add(logging.UploadID(c.UploadID)).
		Msg("multipart upload aborted")
}
