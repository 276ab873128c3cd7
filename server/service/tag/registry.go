package tag

import (
	"fmt"
	"sort"
	"strings"

	tagerrors "github.com/hrygo/tagsync/server/internal/errors"
)

// Registry holds the taggable modules known to the application. It is built
// once at composition time and read-only afterwards.
type Registry struct {
	modules map[string]TaggableModule
}

// NewRegistry validates and registers modules. Nil, unnamed and duplicate
// modules are rejected with a CapabilityNotImplemented error.
func NewRegistry(modules ...TaggableModule) (*Registry, error) {
	r := &Registry{modules: make(map[string]TaggableModule, len(modules))}
	for i, module := range modules {
		if module == nil {
			return nil, tagerrors.CapabilityNotImplemented(fmt.Sprintf("#%d", i)).WithContext("reason", "nil module")
		}
		name := strings.TrimSpace(module.Name())
		if name == "" {
			return nil, tagerrors.CapabilityNotImplemented(fmt.Sprintf("#%d", i)).WithContext("reason", "empty module name")
		}
		if _, ok := r.modules[name]; ok {
			return nil, tagerrors.CapabilityNotImplemented(name).WithContext("reason", "module registered twice")
		}
		r.modules[name] = module
	}
	return r, nil
}

// Lookup returns the module registered under name.
func (r *Registry) Lookup(name string) (TaggableModule, error) {
	if r != nil {
		if module, ok := r.modules[name]; ok {
			return module, nil
		}
	}
	return nil, tagerrors.CapabilityNotImplemented(name)
}

// Names returns the registered module names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
