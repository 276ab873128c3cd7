// Package navigation builds public URLs of module actions.
package navigation

import (
	"strings"
)

// Static resolves module action URLs under a fixed instance URL and language,
// e.g. "https://example.com/en/tags/detail".
type Static struct {
	baseURL  string
	language string
	routes   map[string]string
}

// NewStatic creates a new static navigation.
func NewStatic(instanceURL, language string) *Static {
	return &Static{
		baseURL:  strings.TrimRight(instanceURL, "/"),
		language: strings.Trim(language, "/"),
		routes:   map[string]string{},
	}
}

// WithRoute overrides the path of one module action. The path is relative to the language root.
func (s *Static) WithRoute(module, action, path string) *Static {
	s.routes[routeKey(module, action)] = strings.Trim(path, "/")
	return s
}

// URLFor returns the URL of a module action. An empty or "index" action
// resolves to the module root.
func (s *Static) URLFor(module, action string) string {
	path, ok := s.routes[routeKey(module, action)]
	if !ok {
		path = strings.ToLower(module)
		if action != "" && !strings.EqualFold(action, "index") {
			path += "/" + strings.ToLower(action)
		}
	}

	parts := []string{s.baseURL}
	if s.language != "" {
		parts = append(parts, s.language)
	}
	parts = append(parts, path)
	return strings.Join(parts, "/")
}

func routeKey(module, action string) string {
	return strings.ToLower(module) + "/" + strings.ToLower(action)
}
