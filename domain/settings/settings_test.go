package settings

import "testing"

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value  string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"yes", true, true},
		{"YES", true, true},
		{"on", true, true},
		{"1", true, true},
		{"false", false, true},
		{"NO", false, true},
		{"off", false, true},
		{"0", false, true},
		{"", false, false},
		{" true ", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseBool(tt.value)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseBool(%q) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFormatBool(t *testing.T) {
	t.Parallel()

	if FormatBool(true) != "true" {
		t.Error("FormatBool(true) should be \"true\"")
	}
	if FormatBool(false) != "false" {
		t.Error("FormatBool(false) should be \"false\"")
	}
}

func TestSnapshotDefaults(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot("storage", nil)

	if snap.Region() != DefaultRegion {
		t.Errorf("Region = %s, want %s", snap.Region(), DefaultRegion)
	}
	if snap.AIProfile() != DefaultAIProfile {
		t.Errorf("AIProfile = %s, want %s", snap.AIProfile(), DefaultAIProfile)
	}
	if _, ok := snap.CredentialName(); ok {
		t.Error("CredentialName should be absent")
	}
	if snap.UseResourcePrincipal() {
		t.Error("UseResourcePrincipal should default to false")
	}
}

func TestSnapshotValues(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot("storage", map[string]string{
		KeyCredentialName:       "ops-cred",
		KeyVaultRegion:          "eu-west-1",
		KeyCompartmentID:        "cmp-123",
		KeyUseResourcePrincipal: "YES",
	})

	cred, ok := snap.CredentialName()
	if !ok || cred != "ops-cred" {
		t.Errorf("CredentialName = (%s, %v)", cred, ok)
	}
	if snap.Region() != "eu-west-1" {
		t.Errorf("Region = %s", snap.Region())
	}
	if id, ok := snap.CompartmentID(); !ok || id != "cmp-123" {
		t.Errorf("CompartmentID = (%s, %v)", id, ok)
	}
	if !snap.UseResourcePrincipal() {
		t.Error("YES should parse as true")
	}
}

func TestSnapshotIsolatedFromSource(t *testing.T) {
	t.Parallel()

	src := map[string]string{KeyCredentialName: "a"}
	snap := NewSnapshot("storage", src)
	src[KeyCredentialName] = "b"

	if v, _ := snap.CredentialName(); v != "a" {
		t.Errorf("snapshot should copy values, got %s", v)
	}
}
