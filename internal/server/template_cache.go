package server

import (
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
)

// fragmentsKey names the template set holding only the partials.
const fragmentsKey = "partials"

// LoadTemplates parses every page under templates/ together with the layout
// and all partials, keyed by file name. The partials are also parsed on their
// own under fragmentsKey for HTMX responses.
func LoadTemplates(fsys fs.FS, funcMap template.FuncMap) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)
	const (
		layout   = "templates/layout.html"
		partials = "templates/partials/*.html"
	)

	frag, err := template.New(fragmentsKey).Funcs(funcMap).ParseFS(fsys, partials)
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	templates[fragmentsKey] = frag

	entries, err := fs.ReadDir(fsys, "templates")
	if err != nil {
		return nil, fmt.Errorf("error reading templates directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".html") || name == path.Base(layout) {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(fsys, layout, partials, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		if tmpl.Lookup("content") == nil {
			return nil, fmt.Errorf("template %s does not define content", name)
		}
		templates[name] = tmpl
	}
	return templates, nil
}
