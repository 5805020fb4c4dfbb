package datetime

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"Valid date", "2023-06-01", false},
		{"Leap day", "2024-02-29", false},
		{"Wrong layout", "06/01/2023", true},
		{"Nonexistent day", "2023-02-30", true},
		{"Empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("ParseDate(%q) expected error but got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseDate(%q) error = %v", tt.input, err)
				return
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseDate(%q) location = %v, expected UTC", tt.input, got.Location())
			}
			if FormatDate(got) != tt.input {
				t.Errorf("FormatDate round-trip = %q, expected %q", FormatDate(got), tt.input)
			}
		})
	}
}

func TestMustParseDatePanicsOnBadInput(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("MustParseDate should panic on invalid input")
		}
	}()
	MustParseDate("not-a-date")
}
