// # internal/engine/templates/templates.go

// Package templates expands parameterised YAML subtree templates into item records.
package templates

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/records"
	"assettree/internal/engine/tree"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type Parameter struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Default     *string `yaml:"default,omitempty" json:"default,omitempty"`
}

func (p Parameter) Required() bool { return p.Default == nil }

// Item is one node of a template. Path segments are relative to the parent
// the template is applied under.
type Item struct {
	Path          []string          `yaml:"path,omitempty" json:"path,omitempty"`
	Name          string            `yaml:"name" json:"name"`
	Type          string            `yaml:"type" json:"type"`
	Formula       string            `yaml:"formula,omitempty" json:"formula,omitempty"`
	FormulaParams map[string]string `yaml:"formula_params,omitempty" json:"formula_params,omitempty"`
	Description   string            `yaml:"description,omitempty" json:"description,omitempty"`
}

type Template struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Parameters  []Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Items       []Item      `yaml:"items" json:"items"`
	Source      string      `yaml:"-" json:"source"`
}

// Parse decodes and checks one template document.
func Parse(data []byte, source string) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", source, err)
	}
	t.Name = strings.TrimSpace(t.Name)
	t.Source = source
	if t.Name == "" {
		return nil, fmt.Errorf("template %s: name is required", source)
	}
	if len(t.Items) == 0 {
		return nil, fmt.Errorf("template %s: at least one item is required", t.Name)
	}
	declared := make(map[string]bool, len(t.Parameters))
	for _, p := range t.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("template %s: parameter without a name", t.Name)
		}
		declared[p.Name] = true
	}
	for i, it := range t.Items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("template %s: item %d has no name", t.Name, i)
		}
		for _, ref := range it.placeholders() {
			if !declared[ref] {
				return nil, fmt.Errorf("template %s: item %q uses undeclared parameter %q", t.Name, it.Name, ref)
			}
		}
	}
	return &t, nil
}

func (it Item) placeholders() []string {
	texts := append([]string{it.Name, it.Formula, it.Description}, it.Path...)
	for k, v := range it.FormulaParams {
		texts = append(texts, k, v)
	}
	var out []string
	for _, text := range texts {
		for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
	}
	return out
}

// Expand substitutes params and returns item records rooted at parentPath.
// Parameters without a value or default are a validation error, as are
// values for parameters the template does not declare.
func (t *Template) Expand(params map[string]string, parentPath, delimiter string) ([]records.ItemRecord, error) {
	values, err := t.resolveParams(params)
	if err != nil {
		return nil, err
	}
	subst := func(s string) string {
		return placeholder.ReplaceAllStringFunc(s, func(m string) string {
			return values[placeholder.FindStringSubmatch(m)[1]]
		})
	}

	base := tree.SplitPath(parentPath, delimiter)
	out := make([]records.ItemRecord, 0, len(t.Items))
	for _, it := range t.Items {
		segs := append([]string(nil), base...)
		for _, seg := range it.Path {
			segs = append(segs, subst(seg))
		}
		var fp map[string]string
		if len(it.FormulaParams) > 0 {
			fp = make(map[string]string, len(it.FormulaParams))
			for k, v := range it.FormulaParams {
				fp[subst(k)] = subst(v)
			}
		}
		out = append(out, records.ItemRecord{
			Row:           len(out),
			Path:          records.FieldOf(tree.JoinPath(segs, delimiter)),
			Name:          records.FieldOf(subst(it.Name)),
			Type:          records.FieldOf(it.Type),
			Formula:       records.FieldOf(subst(it.Formula)),
			FormulaParams: fp,
			Description:   records.FieldOf(subst(it.Description)),
		})
	}
	return out, nil
}

func (t *Template) resolveParams(params map[string]string) (map[string]string, error) {
	declared := make(map[string]bool, len(t.Parameters))
	values := make(map[string]string, len(t.Parameters))
	var missing []string
	for _, p := range t.Parameters {
		declared[p.Name] = true
		if v, ok := params[p.Name]; ok && strings.TrimSpace(v) != "" {
			values[p.Name] = strings.TrimSpace(v)
			continue
		}
		if p.Default != nil {
			values[p.Name] = *p.Default
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError,
			fmt.Sprintf("template %s is missing required parameters: %s", t.Name, strings.Join(missing, ", "))),
			"parameters", missing)
	}
	var unknown []string
	for k := range params {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.New(errors.CodeValidationError,
			fmt.Sprintf("template %s has no parameters named %s", t.Name, strings.Join(unknown, ", ")))
	}
	return values, nil
}

// Registry holds the built-in templates plus any loaded from a directory.
// Directory templates replace built-ins of the same name.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewRegistry() (*Registry, error) {
	r := &Registry{templates: make(map[string]*Template)}
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("read built-in templates: %w", err)
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile("builtin/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read built-in template %s: %w", e.Name(), err)
		}
		t, err := Parse(data, "builtin:"+e.Name())
		if err != nil {
			return nil, err
		}
		r.templates[t.Name] = t
	}
	return r, nil
}

// LoadDir adds every *.yaml / *.yml template in dir. A missing dir is not an error.
func (r *Registry) LoadDir(dir string) (int, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read template dir %q: %w", dir, err)
	}

	loaded := make([]*Template, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read template %q: %w", path, err)
		}
		t, err := Parse(data, path)
		if err != nil {
			return 0, err
		}
		loaded = append(loaded, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range loaded {
		r.templates[t.Name] = t
	}
	return len(loaded), nil
}

func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[strings.TrimSpace(name)]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("template %q not found", name))
	}
	return t, nil
}

// List returns templates sorted by name.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
