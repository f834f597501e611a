package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for facade logging.

// Agent adds an agent name field.
func Agent(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("agent", name)
	}
}

// ToolName adds a tool name field.
func ToolName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("tool", name)
	}
}

// Provider adds a provider name field.
func Provider(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("provider", name)
	}
}

// Bucket adds a bucket name field.
func Bucket(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("bucket", name)
	}
}

// ObjectName adds an object name field.
func ObjectName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("object", name)
	}
}

// SecretID adds a secret identifier field. Only the identifier is ever
// logged; plaintext secret material must never reach a log event.
func SecretID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("secret_id", id)
	}
}

// SecretBytes adds the decoded secret length. Length is safe to log,
// content is not.
func SecretBytes(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("secret_bytes", n)
	}
}

// UploadID adds a multipart upload identifier field.
func UploadID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("upload_id", id)
	}
}

// WorkRequestID adds a work request identifier field.
func WorkRequestID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("work_request_id", id)
	}
}

// Compartment adds a compartment identifier field.
func Compartment(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("compartment_id", id)
	}
}

// ErrorKind adds the envelope error kind field.
func ErrorKind(kind string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("error_kind", kind)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Count adds a generic count field.
func Count(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("count", n)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
