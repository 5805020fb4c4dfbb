// Package datetime provides date parsing utilities shared by the config
// layer and tests.
package datetime

import (
	"fmt"
	"time"

	"github.com/iwvelando/loan-engine/pkg/constants"
)

// DateTimeLayout is the format expected in config files and is also the
// output date format.
const DateTimeLayout = constants.DateTimeLayout

// ParseDate parses a config-format date (2006-01-02) into a UTC time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, DateTimeLayout)
	}
	return t, nil
}

// MustParseDate parses a config-format date and panics on error. This is
// intended for use in tests where the date string is known to be valid.
func MustParseDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate renders a time in the config date format.
func FormatDate(t time.Time) string {
	return t.Format(DateTimeLayout)
}
