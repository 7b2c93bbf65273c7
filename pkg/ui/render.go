package ui

import (
	"os"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

var ErrClipboardUnsupported = errors.New("clipboard is not available on this system")

func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// MarkdownRenderer renders markdown for out, or returns nil when out is not a terminal.
func MarkdownRenderer(out *os.File) func(string) (string, error) {
	if !IsTerminal(out) {
		return nil
	}
	return func(s string) (string, error) {
		return glamour.Render(s, "dark")
	}
}

func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return errors.Wrap(clipboard.WriteAll(text), "could not copy to clipboard")
}
