// Package envelope defines the uniform JSON result contract for facade tools.
//
// Every tool call resolves to a single JSON object carrying a "status" key.
// Success envelopes carry the operation payload inline; error envelopes carry
// a machine-readable error kind, a message, and optionally the inputs that
// were echoed back to the caller.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the top-level outcome indicator present in every envelope.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Kind classifies an error so callers can branch without string matching.
type Kind string

const (
	// KindNotConfigured indicates a required setting is absent for the agent.
	KindNotConfigured Kind = "not_configured"

	// KindInvalidInput indicates the caller-supplied parameters were rejected.
	KindInvalidInput Kind = "invalid_input"

	// KindUnsupported indicates the operation is not available on the
	// configured provider.
	KindUnsupported Kind = "unsupported"

	// KindResolution indicates secret or identity resolution failed before
	// the provider was invoked.
	KindResolution Kind = "resolution_failed"

	// KindProvider indicates the external provider call failed.
	KindProvider Kind = "provider_error"

	// KindCouldNotGenerate indicates the SQL generator declined the prompt.
	// The calling agent decides whether to refine and retry.
	KindCouldNotGenerate Kind = "could_not_generate"
)

// Error is a tagged facade error. It carries enough structure for the
// envelope layer to build a useful error object without leaking internals.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.err
}

// NewError creates a tagged error.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a tagged error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and message.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, err: err}
}

// WithStatusCode attaches an HTTP-ish status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// NotConfigured builds the standard "not configured" error for a missing
// setting. The message names the key and agent so an operator can fix the
// installation.
func NotConfigured(key, agent string) *Error {
	return Errorf(KindNotConfigured, "%s is not configured for agent %q", key, agent)
}

// Unsupported builds the standard error for an operation the configured
// provider cannot express.
func Unsupported(operation, provider string) *Error {
	return Errorf(KindUnsupported, "operation %s is not supported by provider %s", operation, provider)
}

// Success marshals a payload and injects "status":"success". The payload's
// own fields appear inline alongside status, matching the facade contract.
// A nil payload yields a bare success envelope.
func Success(payload any) (json.RawMessage, error) {
	obj := map[string]any{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("payload must marshal to a JSON object: %w", err)
		}
	}
	obj["status"] = StatusSuccess
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Fail converts any error into an error envelope. Tagged errors keep their
// kind and status code; everything else is classified as a provider error.
// Echoed inputs are merged in so the caller can correlate the failure, but
// they must never be treated as operation output.
func Fail(err error, echo map[string]any) json.RawMessage {
	obj := make(map[string]any, len(echo)+4)
	for k, v := range echo {
		obj[k] = v
	}
	obj["status"] = StatusError

	var tagged *Error
	if errors.As(err, &tagged) {
		obj["error_kind"] = tagged.Kind
		obj["message"] = tagged.Message
		if tagged.StatusCode != 0 {
			obj["status_code"] = tagged.StatusCode
		}
	} else if err != nil {
		obj["error_kind"] = KindProvider
		obj["message"] = err.Error()
	} else {
		obj["error_kind"] = KindProvider
		obj["message"] = "unknown error"
	}

	data, merr := json.Marshal(obj)
	if merr != nil {
		// Fail must always produce a parseable envelope.
		return json.RawMessage(`{"status":"error","error_kind":"provider_error","message":"failed to encode error envelope"}`)
	}
	return data
}

// IsKind reports whether err is a tagged error of the given kind.
func IsKind(err error, kind Kind) bool {
	var tagged *Error
	return errors.As(err, &tagged) && tagged.Kind == kind
}
