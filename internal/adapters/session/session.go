// Package session captures the named values a scheduler wants to
// share with its workers. The bundle is an explicit artifact written
// once per run and overwritten on the next, never ambient process
// state; workers surface it to operations through the evaluation Call.
package session

import (
	"errors"
	"io/fs"
	"os"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/xjson"
)

type Bundle struct {
	Values map[string]interface{} `json:"values"`
}

// Capture copies the given values into a new bundle. Values must be
// serializable; anything else fails at Write time.
func Capture(values map[string]interface{}) *Bundle {
	copied := make(map[string]interface{}, len(values))
	for name, value := range values {
		copied[name] = value
	}
	return &Bundle{Values: copied}
}

// Write persists the bundle at path, replacing any previous snapshot.
func (b *Bundle) Write(path string) error {
	data, err := xjson.Marshal(b)
	if err != nil {
		return domain.NewStorageError("session write", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.NewStorageError("session write", err)
	}
	return nil
}

// Load reads a bundle from path. A missing file is not an error: it
// means no snapshot was configured for this run, and Load returns nil.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewStorageError("session read", err)
	}
	var bundle Bundle
	if err := xjson.Unmarshal(data, &bundle); err != nil {
		return nil, domain.NewStorageError("session read", err)
	}
	return &bundle, nil
}
