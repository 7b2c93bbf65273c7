package ui

import (
	"os"
)

// OpenTTY opens the controlling terminal, so prompts work while stdout is redirected.
func OpenTTY() (*os.File, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
