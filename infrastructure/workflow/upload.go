package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/opsforge/opsforge/pack/objectstore"
)

// ErrTerminal is returned when a step is invoked after the workflow reached
// a terminal state.
var ErrTerminal = errors.New("upload workflow is in a terminal state")

// Upload sequences one multipart upload through the statechart. It is not
// safe for concurrent use; one upload is one goroutine's workflow.
type Upload struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewUpload creates the workflow and the provider-side upload. Failing to
// create the upload is a plain error: there is nothing to compensate yet.
func NewUpload(ctx context.Context, provider objectstore.Provider, bucket, key string) (*Upload, error) {
	if provider == nil {
		return nil, errors.New("objectstore provider is required")
	}
	if bucket == "" || key == "" {
		return nil, errors.New("bucket and key are required")
	}

	machine, err := newUploadMachine()
	if err != nil {
		return nil, fmt.Errorf("build upload machine: %w", err)
	}

	created, err := provider.CreateMultipartUpload(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("create multipart upload: %w", err)
	}

	mctx := &Context{
		Provider: provider,
		Bucket:   bucket,
		Key:      key,
		UploadID: created.UploadID,
	}

	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = mctx
	})
	interp.Start()

	return &Upload{interp: interp, ctx: mctx}, nil
}

// UploadID returns the provider-side upload identifier.
func (u *Upload) UploadID() string {
	return u.ctx.UploadID
}

// State returns the current workflow state.
func (u *Upload) State() statekit.StateID {
	return u.interp.State().Value
}

// Err returns the step error that moved the workflow to failed, if any.
func (u *Upload) Err() error {
	return u.ctx.FailureErr
}

// AbortErr returns the compensation error, if the abort itself failed.
func (u *Upload) AbortErr() error {
	return u.ctx.AbortErr
}

// ETag returns the committed object's etag once the workflow is done.
func (u *Upload) ETag() string {
	return u.ctx.ETag
}

// UploadPart uploads the next part. On failure the workflow transitions to
// failed and the provider-side upload is aborted before returning.
func (u *Upload) UploadPart(ctx context.Context, partNumber int, content []byte) error {
	if u.interp.Done() {
		return ErrTerminal
	}

	part, err := u.ctx.Provider.UploadPart(ctx, u.ctx.Bucket, u.ctx.Key, u.ctx.UploadID, partNumber, bytes.NewReader(content))
	if err != nil {
		u.fail(ctx, fmt.Errorf("upload part %d: %w", partNumber, err))
		return u.ctx.FailureErr
	}

	u.ctx.Parts = append(u.ctx.Parts, objectstore.CommitPart{
		PartNumber: part.PartNumber,
		ETag:       part.ETag,
	})
	u.interp.Send(statekit.Event{Type: eventUpload})
	return nil
}

// Commit finalizes the upload. On failure the workflow transitions to failed
// and the provider-side upload is aborted before returning.
func (u *Upload) Commit(ctx context.Context) (string, error) {
	if u.interp.Done() {
		return "", ErrTerminal
	}
	if len(u.ctx.Parts) == 0 {
		u.fail(ctx, errors.New("commit without uploaded parts"))
		return "", u.ctx.FailureErr
	}

	u.interp.Send(statekit.Event{Type: eventCommit})

	etag, err := u.ctx.Provider.CommitMultipartUpload(ctx, u.ctx.Bucket, u.ctx.Key, u.ctx.UploadID, u.ctx.Parts)
	if err != nil {
		u.fail(ctx, fmt.Errorf("commit multipart upload: %w", err))
		return "", u.ctx.FailureErr
	}

	u.ctx.ETag = etag
	u.interp.Send(statekit.Event{Type: eventComplete})
	return etag, nil
}

// Abort cancels the upload explicitly and runs the compensation.
func (u *Upload) Abort(ctx context.Context) error {
	if u.interp.Done() {
		return ErrTerminal
	}

	u.ctx.callCtx = ctx
	u.interp.Send(statekit.Event{Type: eventAbort})
	return u.ctx.AbortErr
}

// fail records the step error and drives the machine through the abort
// compensation into the failed state.
func (u *Upload) fail(ctx context.Context, err error) {
	u.ctx.FailureErr = err
	u.ctx.callCtx = ctx
	u.interp.Send(statekit.Event{Type: eventFail})
}
