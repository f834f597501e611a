package config

import (
	"errors"
	"testing"

	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/storage/memory"
)

func TestNewWatcher(t *testing.T) {
	t.Parallel()

	store := memory.NewSettingsStore()

	t.Run("valid arguments", func(t *testing.T) {
		t.Parallel()
		w, err := NewWatcher(nil, store, "/etc/opsforge/profile.yaml", "ops")
		if err != nil {
			t.Fatalf("NewWatcher() error = %v", err)
		}
		if w.loader == nil {
			t.Error("nil loader should be replaced with default")
		}
	})

	t.Run("nil store rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := NewWatcher(nil, nil, "profile.yaml", "ops"); err == nil {
			t.Error("NewWatcher() should fail with nil store")
		}
	})

	t.Run("empty agent rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewWatcher(nil, store, "profile.yaml", "")
		if !errors.Is(err, settings.ErrEmptyAgent) {
			t.Errorf("NewWatcher() error = %v, want ErrEmptyAgent", err)
		}
	})

	t.Run("unsupported extension rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewWatcher(nil, store, "profile.toml", "ops")
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("NewWatcher() error = %v, want ErrUnsupportedFormat", err)
		}
	})
}
