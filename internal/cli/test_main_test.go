package cli

import (
	"fmt"
	"os"
	"testing"
)

// TestMain points HOME and the config lookup at a scratch directory so no
// test reads or writes the developer's real configuration.
func TestMain(m *testing.M) {
	os.Exit(runIsolated(m))
}

func runIsolated(m *testing.M) int {
	home, err := os.MkdirTemp("", "docsync-home-")
	if err != nil {
		fmt.Fprintln(os.Stderr, "temp HOME:", err)
		return 1
	}
	defer func() { _ = os.RemoveAll(home) }()

	for key, value := range map[string]string{"HOME": home, "NO_COLOR": "1"} {
		if err := os.Setenv(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "set %s: %v\n", key, err)
			return 1
		}
	}
	_ = os.Unsetenv("DOCSYNC_CONFIG")
	return m.Run()
}
