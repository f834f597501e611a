package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr so stdout stays a clean protocol stream", config.Output)
	}
}

func TestDefaultConfigLevelFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")

	if config := DefaultConfig(); config.Level != "debug" {
		t.Errorf("Level = %s, want the value of %s", config.Level, EnvLevel)
	}
}

func TestServeConfig(t *testing.T) {
	config := ServeConfig()

	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "json" {
		t.Errorf("Format = %s, want json", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO}, // Default
		{"", bolt.INFO},        // Empty defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStringFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		field    Field
		expected string
	}{
		{"Agent", Agent("billing"), `"agent":"billing"`},
		{"ToolName", ToolName("obj_put"), `"tool":"obj_put"`},
		{"Provider", Provider("s3"), `"provider":"s3"`},
		{"Bucket", Bucket("reports"), `"bucket":"reports"`},
		{"ObjectName", ObjectName("q3/data.csv"), `"object":"q3/data.csv"`},
		{"SecretID", SecretID("sec-123"), `"secret_id":"sec-123"`},
		{"UploadID", UploadID("up-9"), `"upload_id":"up-9"`},
		{"WorkRequestID", WorkRequestID("wr-7"), `"work_request_id":"wr-7"`},
		{"Compartment", Compartment("cmp-1"), `"compartment_id":"cmp-1"`},
		{"ErrorKind", ErrorKind("not_configured"), `"error_kind":"not_configured"`},
		{"Reason", Reason("user request"), `"reason":"user request"`},
		{"Component", Component("executor"), `"component":"executor"`},
		{"Operation", Operation("tool_execution"), `"operation":"tool_execution"`},
		{"Str", Str("custom_key", "custom_value"), `"custom_key":"custom_value"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")

			if !bytes.Contains(buf.Bytes(), []byte(tt.expected)) {
				t.Errorf("expected %s in output: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestDurationField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	Duration(100 * time.Millisecond)(logger.Info()).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"duration_ms":100`)) {
		t.Errorf("expected duration_ms field in output: %s", buf.String())
	}
}

func TestSecretBytesField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	SecretBytes(42)(logger.Info()).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"secret_bytes":42`)) {
		t.Errorf("expected secret_bytes field in output: %s", buf.String())
	}
}

func TestCountField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	Count(3)(logger.Info()).Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"count":3`)) {
		t.Errorf("expected count field in output: %s", buf.String())
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	t.Run("with error", func(t *testing.T) {
		t.Parallel()

		logger, buf := testLogger()
		ErrorField(errors.New("test error"))(logger.Info()).Msg("test")

		if !bytes.Contains(buf.Bytes(), []byte(`"error":"test error"`)) {
			t.Errorf("expected error field in output: %s", buf.String())
		}
	})

	t.Run("with nil error", func(t *testing.T) {
		t.Parallel()

		logger, buf := testLogger()
		ErrorField(nil)(logger.Info()).Msg("test")

		if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
			t.Errorf("unexpected error field in output: %s", buf.String())
		}
	})
}

// TestGet tests getting the default logger
func TestGet(t *testing.T) {
	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil")
	}
}

// TestSetLevel tests changing the log level
func TestSetLevel(t *testing.T) {
	// Just verify it doesn't panic
	SetLevel("debug")
	SetLevel("info")
	SetLevel("error")
}

// TestLogEvent tests the LogEvent wrapper
func TestLogEvent(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()

	t.Run("Add chains fields", func(t *testing.T) {
		buf.Reset()
		event := &LogEvent{event: logger.Info()}
		event.Add(Agent("ops")).Add(ToolName("obj_list")).Msg("test")

		if !bytes.Contains(buf.Bytes(), []byte(`"agent":"ops"`)) {
			t.Errorf("expected agent field in output: %s", buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"tool":"obj_list"`)) {
			t.Errorf("expected tool field in output: %s", buf.String())
		}
	})

	t.Run("Send without message", func(t *testing.T) {
		buf.Reset()
		event := &LogEvent{event: logger.Info()}
		event.Add(Agent("ops")).Send()

		if !bytes.Contains(buf.Bytes(), []byte(`"agent":"ops"`)) {
			t.Errorf("expected agent field in output: %s", buf.String())
		}
	})
}

// TestNewEvent tests creating a new LogEvent wrapper
func TestNewEvent(t *testing.T) {
	logger, _ := testLogger()
	event := logger.Info()
	logEvent := NewEvent(event)

	if logEvent == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if logEvent.event != event {
		t.Error("NewEvent() did not store the event correctly")
	}
}
