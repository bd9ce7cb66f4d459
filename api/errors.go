package api

import "fmt"

func errInvalidLimit(raw string) error {
	return fmt.Errorf("limit must be a positive integer, got %q", raw)
}

func errInvalidFormat(format string) error {
	return fmt.Errorf("format must be %q or %q, got %q", FormatCSV, FormatJSON, format)
}
