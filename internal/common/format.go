package common

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintHeader prints a formatted header with title and separators
func PrintHeader(w io.Writer, title string, width int) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", width))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", width))
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(w io.Writer, message string, width int) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", width))
	fmt.Fprintln(w, message)
	fmt.Fprintln(w, strings.Repeat("=", width)+"\n")
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// PrintBoxRow prints one "label: value" row of a boxed list.
func PrintBoxRow(w io.Writer, label string, value interface{}, isLast bool) {
	fmt.Fprintf(w, "%s %-15s: %v\n", BoxPrefix(isLast), label, value)
}

// FormatExpiry renders a remaining lifetime in whole seconds.
func FormatExpiry(seconds int64) string {
	if seconds <= 0 {
		return "never"
	}
	return (time.Duration(seconds) * time.Second).String()
}
