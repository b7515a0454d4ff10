package ui

import (
	"os"

	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/klauern/docsync/internal/model"
)

var titleCaser = cases.Title(language.English)

// Title capitalizes each word of s.
func Title(s string) string {
	return titleCaser.String(s)
}

// ConfigureColor applies a color mode: "always", "never" or "auto". Auto
// enables colors only when stdout is a terminal and NO_COLOR is unset.
func ConfigureColor(mode string) {
	switch mode {
	case "always":
		EnableColors()
	case "never":
		DisableColors()
	default:
		if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
			DisableColors()
		} else {
			EnableColors()
		}
	}
}

// ChangeLabel renders a local change kind such as "added" with a symbol.
func ChangeLabel(kind string) string {
	switch kind {
	case "added":
		return Success("+ " + Title(kind))
	case "modified":
		return Warning("~ " + Title(kind))
	case "deleted":
		return Error("- " + Title(kind))
	default:
		return Title(kind)
	}
}

// SyncStatusLabel renders a sync status for a file.
func SyncStatusLabel(s model.SyncStatus) string {
	if s == model.NoConflict {
		return StatusSuccess(Title(s.Describe()))
	}
	return StatusError(Title(s.Describe()))
}
