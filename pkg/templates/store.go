package templates

import (
	"context"

	"github.com/pkg/errors"
)

// Store persists templates.
//
// List returns templates ordered by their file name. Get returns nil, nil when the id is
// unknown. Save assigns an id when the template has none and returns the stored copy.
// Delete reports whether a template was removed. Builtin templates are seeded on first
// access and can be neither saved over nor deleted.
type Store interface {
	List(ctx context.Context) ([]*Template, error)
	Get(ctx context.Context, id string) (*Template, error)
	Save(ctx context.Context, t *Template) (*Template, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// checkWritable rejects writes that would touch a builtin template.
func checkWritable(t *Template) error {
	if t == nil {
		return &ValidationError{Reason: "template is nil"}
	}
	if t.Builtin || IsBuiltinID(t.ID) {
		return errors.Wrapf(ErrBuiltinTemplate, "template %q", t.ID)
	}
	return nil
}

// prepareForSave clones t, assigning an id when missing, and validates it.
func prepareForSave(t *Template) (*Template, error) {
	if err := checkWritable(t); err != nil {
		return nil, err
	}
	ret := t.Clone()
	if ret.ID == "" {
		ret.ID = NewTemplate(ret.Name).ID
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
