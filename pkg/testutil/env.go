package testutil

import (
	"os"
	"testing"
)

// RequireEnv returns the value of an environment variable, skipping the test
// when it is unset. Used to gate integration suites on available backends.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("skipping: %s is not set", key)
	}
	return value
}
