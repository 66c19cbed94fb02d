package config

import (
	"os"
	"testing"
)

// unsetenv removes keys from the environment. Callers register the keys with
// t.Setenv first so the original values are restored after the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("Failed to unset %s: %v", k, err)
		}
	}
}
