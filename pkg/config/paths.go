package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	dirName        = ".prompt-enhancer"
	configFileName = "config.yaml"
	envFileName    = "env"
	templatesDir   = "templates"
	templatesDB    = "templates.db"
)

// Paths locates every file the application reads or writes.
type Paths struct {
	Dir          string
	ConfigFile   string
	EnvFile      string
	TemplatesDir string
	TemplatesDB  string
}

func NewPaths(dir string) Paths {
	return Paths{
		Dir:          dir,
		ConfigFile:   filepath.Join(dir, configFileName),
		EnvFile:      filepath.Join(dir, envFileName),
		TemplatesDir: filepath.Join(dir, templatesDir),
		TemplatesDB:  filepath.Join(dir, templatesDB),
	}
}

// DefaultPaths is rooted at ~/.prompt-enhancer.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, errors.Wrap(err, "could not determine home directory")
	}
	return NewPaths(filepath.Join(home, dirName)), nil
}
