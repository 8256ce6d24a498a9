package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("TRAMATEX_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
