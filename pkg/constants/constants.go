// Package constants provides shared constants for the loan engine.
package constants

// DateTimeLayout is the date format expected in config files and is also the
// output date format.
const DateTimeLayout = "2006-01-02"

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"
)
