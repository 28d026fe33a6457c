package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LITIGO_TEST_MODE") == "" {
			_ = os.Setenv("LITIGO_TEST_MODE", "1")
		}
	})
}
