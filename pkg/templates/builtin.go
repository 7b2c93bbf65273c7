package templates

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

const builtinIDPrefix = "builtin-"

var (
	builtinOnce      sync.Once
	builtinTemplates []*Template
	builtinErr       error
)

func loadBuiltins() ([]*Template, error) {
	builtinOnce.Do(func() {
		var ts []*Template
		if err := yaml.Unmarshal(builtinYAML, &ts); err != nil {
			builtinErr = errors.Wrap(err, "could not parse builtin templates")
			return
		}
		for _, t := range ts {
			if !t.Builtin || !strings.HasPrefix(t.ID, builtinIDPrefix) {
				builtinErr = errors.Errorf("builtin template %q is not marked builtin", t.ID)
				return
			}
			if err := t.Validate(); err != nil {
				builtinErr = errors.Wrapf(err, "builtin template %q", t.ID)
				return
			}
		}
		builtinTemplates = ts
	})
	return builtinTemplates, builtinErr
}

// Builtins returns copies of the starter templates shipped with the binary.
func Builtins() []*Template {
	ts, err := loadBuiltins()
	if err != nil {
		// the embedded file is covered by tests
		panic(err)
	}
	ret := make([]*Template, 0, len(ts))
	for _, t := range ts {
		ret = append(ret, t.Clone())
	}
	return ret
}

// IsBuiltinID reports whether id is in the namespace reserved for shipped templates.
func IsBuiltinID(id string) bool {
	return strings.HasPrefix(id, builtinIDPrefix)
}
