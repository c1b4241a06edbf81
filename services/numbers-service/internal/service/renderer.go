package service

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// Renderer compiles embedded email templates on first use and keeps them for the life of the
// process. The cache belongs to the renderer instance, not the package.
type Renderer struct {
	fs    embed.FS
	mu    sync.Mutex
	cache map[string]*template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{fs: templateFS, cache: make(map[string]*template.Template)}
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tpl, ok := r.cache[name]; ok {
		return tpl, nil
	}

	tpl, err := template.ParseFS(r.fs, layoutTemplate, "templates/"+name+".html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
	}
	r.cache[name] = tpl
	return tpl, nil
}

// Component exposes a template as a templ.Component.
func (r *Renderer) Component(name string, data interface{}) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		tpl, err := r.lookup(name)
		if err != nil {
			return err
		}
		return tpl.ExecuteTemplate(w, "layout", data)
	})
}

func (r *Renderer) cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Render renders a component to a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
