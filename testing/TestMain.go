// Package testing switches the application into test mode when imported by
// test binaries, so runtime side effects (listeners, workers) are skipped.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("LADTC_TEST_MODE", "1")
		if os.Getenv("SMTP_HOST") == "" {
			_ = os.Setenv("SMTP_HOST", "127.0.0.1")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
