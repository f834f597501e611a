package config

import (
	"errors"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("OPSFORGE_TEST_REGION", "eu-frankfurt-1")
	t.Setenv("OPSFORGE_TEST_EMPTY", "")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple bracket", "region: ${OPSFORGE_TEST_REGION}", "region: eu-frankfurt-1"},
		{"simple dollar", "region: $OPSFORGE_TEST_REGION", "region: eu-frankfurt-1"},
		{"default used when unset", "${OPSFORGE_TEST_UNSET:-us-east-1}", "us-east-1"},
		{"default used when empty", "${OPSFORGE_TEST_EMPTY:-fallback}", "fallback"},
		{"default ignored when set", "${OPSFORGE_TEST_REGION:-us-east-1}", "eu-frankfurt-1"},
		{"unset without default", "x${OPSFORGE_TEST_UNSET}y", "xy"},
		{"no variables", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.expected {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("OPSFORGE_TEST_SET", "value")

	t.Run("set variable succeeds", func(t *testing.T) {
		got, err := ExpandEnvStrict("${OPSFORGE_TEST_SET}")
		if err != nil {
			t.Fatalf("ExpandEnvStrict() error = %v", err)
		}
		if got != "value" {
			t.Errorf("ExpandEnvStrict() = %q, want value", got)
		}
	})

	t.Run("unset variable fails", func(t *testing.T) {
		_, err := ExpandEnvStrict("${OPSFORGE_TEST_UNSET_STRICT}")
		if !errors.Is(err, ErrMissingEnvVar) {
			t.Errorf("ExpandEnvStrict() error = %v, want ErrMissingEnvVar", err)
		}
	})

	t.Run("required modifier fails with message", func(t *testing.T) {
		_, err := ExpandEnvStrict("${OPSFORGE_TEST_UNSET_STRICT:?vault region is required}")
		if !errors.Is(err, ErrMissingEnvVar) {
			t.Errorf("ExpandEnvStrict() error = %v, want ErrMissingEnvVar", err)
		}
	})
}
