// Package ui provides terminal output helpers for docsync: a small color
// palette, status symbols, and labels for local changes and sync statuses.
package ui

import (
	"github.com/fatih/color"
)

// Palette. Each func returns its arguments unchanged when colors are off.
var (
	Success = color.New(color.FgGreen).SprintFunc()
	Error   = color.New(color.FgRed).SprintFunc()
	Warning = color.New(color.FgYellow).SprintFunc()
	Info    = color.New(color.FgCyan).SprintFunc()
	Bold    = color.New(color.Bold).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
	// Header styles table headings.
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolSkipped = "-"
)

func symbolized(paint func(...any) string, symbol, msg string) string {
	if msg == "" {
		return paint(symbol)
	}
	return paint(symbol) + " " + msg
}

// StatusSuccess returns a green checkmark followed by msg, if any.
func StatusSuccess(msg string) string { return symbolized(Success, SymbolSuccess, msg) }

// StatusError returns a red cross followed by msg, if any.
func StatusError(msg string) string { return symbolized(Error, SymbolError, msg) }

// StatusWarning returns a yellow warning sign followed by msg, if any.
func StatusWarning(msg string) string { return symbolized(Warning, SymbolWarning, msg) }

// StatusSkipped returns a dimmed dash followed by msg, if any.
func StatusSkipped(msg string) string { return symbolized(Dim, SymbolSkipped, msg) }

// DisableColors turns color output off process wide.
func DisableColors() {
	color.NoColor = true
}

// EnableColors turns color output on process wide.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled reports whether colors are on.
func IsColorEnabled() bool {
	return !color.NoColor
}
