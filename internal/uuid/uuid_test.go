// Package uuid provides unit tests for UUID generation and validation.
package uuid

import (
	"regexp"
	"testing"
)

// TestNew tests that New() generates valid UUID v4 strings.
func TestNew(t *testing.T) {
	id := New()

	if id == "" {
		t.Fatal("Expected non-empty UUID string")
	}

	// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidRegex.MatchString(id) {
		t.Errorf("Generated UUID does not match v4 format: %s", id)
	}
}

// TestNewUniqueness tests that New() generates unique IDs.
func TestNewUniqueness(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := New()
		if ids[id] {
			t.Errorf("Duplicate UUID generated: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != 1000 {
		t.Errorf("Expected 1000 unique UUIDs, got %d", len(ids))
	}
}

// TestIsValid tests valid and invalid UUID v4 strings.
func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		uuid string
		want bool
	}{
		{
			name: "valid UUID v4",
			uuid: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			want: true,
		},
		{
			name: "valid UUID v4 uppercase",
			uuid: "6BA7B810-9DAD-41D1-80B4-00C04FD430C8",
			want: true,
		},
		{
			name: "empty string",
			uuid: "",
			want: false,
		},
		{
			name: "missing dashes",
			uuid: "f47ac10b58cc4372a5670e02b2c3d479",
			want: false,
		},
		{
			name: "wrong version",
			uuid: "f47ac10b-58cc-1372-a567-0e02b2c3d479",
			want: false,
		},
		{
			name: "wrong variant",
			uuid: "f47ac10b-58cc-4372-c567-0e02b2c3d479",
			want: false,
		},
		{
			name: "random string",
			uuid: "not-a-uuid",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValid(tt.uuid)
			if got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.uuid, got, tt.want)
			}
		})
	}
}

// TestValidate tests Validate() function.
func TestValidate(t *testing.T) {
	if err := Validate("f47ac10b-58cc-4372-a567-0e02b2c3d479"); err != nil {
		t.Errorf("Validate rejected valid UUID: %v", err)
	}

	if err := Validate("not-a-uuid"); err == nil {
		t.Error("Validate accepted invalid UUID")
	}
}
