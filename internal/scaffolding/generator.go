// Package scaffolding creates new module directories from built-in
// templates.
package scaffolding

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ModuleGenerator handles module scaffolding
type ModuleGenerator struct {
	fs        afero.Fs
	templates map[string]ModuleTemplate
	outputDir string
	area      string
	now       func() time.Time
}

// GenerateOptions holds options for module generation
type GenerateOptions struct {
	Name      string
	Template  string
	OutputDir string
	Area      string
	Sequence  []string
	Force     bool
}

// TemplateInfo holds basic template information
type TemplateInfo struct {
	Name        string
	Description string
	Files       int
}

// NewModuleGenerator creates a generator writing under outputDir.
func NewModuleGenerator(fs afero.Fs, outputDir, area string) *ModuleGenerator {
	if area == "" {
		area = "frontend"
	}
	return &ModuleGenerator{
		fs:        fs,
		templates: GetBuiltinTemplates(),
		outputDir: outputDir,
		area:      area,
		now:       time.Now,
	}
}

// Generate writes a new module and returns the paths of the created files.
// It refuses to touch an existing module directory unless Force is set.
func (g *ModuleGenerator) Generate(opts GenerateOptions) ([]string, error) {
	if err := ValidateModuleName(opts.Name); err != nil {
		return nil, err
	}
	for _, dep := range opts.Sequence {
		if err := ValidateModuleName(dep); err != nil {
			return nil, fmt.Errorf("sequence entry %q: %w", dep, err)
		}
	}
	if opts.Template == "" {
		opts.Template = "basic"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = g.outputDir
	}
	if opts.Area == "" {
		opts.Area = g.area
	}

	tmpl, exists := g.templates[opts.Template]
	if !exists {
		return nil, fmt.Errorf("template %q not found", opts.Template)
	}

	dir := filepath.Join(opts.OutputDir, opts.Name)
	if exists, _ := afero.DirExists(g.fs, dir); exists && !opts.Force {
		return nil, fmt.Errorf("module directory %s already exists", dir)
	}

	ctx := g.context(opts)
	created := make([]string, 0, len(tmpl.Files))
	for _, f := range tmpl.Files {
		rel, err := execute(f.Path, ctx)
		if err != nil {
			return created, fmt.Errorf("rendering path %s: %w", f.Path, err)
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := g.generateFile(path, f.Content, ctx); err != nil {
			return created, err
		}
		created = append(created, path)
	}
	return created, nil
}

// ListTemplates returns the available templates sorted by name.
func (g *ModuleGenerator) ListTemplates() []TemplateInfo {
	out := make([]TemplateInfo, 0, len(g.templates))
	for name, t := range g.templates {
		out = append(out, TemplateInfo{Name: name, Description: t.Description, Files: len(t.Files)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddCustomTemplate adds a custom template
func (g *ModuleGenerator) AddCustomTemplate(name string, tmpl ModuleTemplate) {
	g.templates[name] = tmpl
}

func (g *ModuleGenerator) context(opts GenerateOptions) TemplateContext {
	vendor, pkg, _ := strings.Cut(opts.Name, "_")
	title := cases.Title(language.English)
	return TemplateContext{
		Module:      opts.Name,
		Vendor:      vendor,
		Package:     pkg,
		DisplayName: title.String(vendor) + " " + title.String(splitWords(pkg)),
		Snake:       strings.ToLower(opts.Name),
		Area:        opts.Area,
		Sequence:    opts.Sequence,
		Date:        g.now().Format("2006"),
	}
}

func (g *ModuleGenerator) generateFile(path, content string, ctx TemplateContext) error {
	out, err := execute(content, ctx)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	if err := g.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(g.fs, path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func execute(text string, ctx TemplateContext) (string, error) {
	tmpl, err := template.New("scaffold").Delims("[[", "]]").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateModuleName checks that name has the Vendor_Module form: two
// non-empty parts of letters and digits, each starting with a letter.
func ValidateModuleName(name string) error {
	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}
	vendor, pkg, ok := strings.Cut(name, "_")
	if !ok || vendor == "" || pkg == "" {
		return fmt.Errorf("module name %q must have the form Vendor_Module", name)
	}
	for _, part := range []string{vendor, pkg} {
		if !isLetter(part[0]) {
			return fmt.Errorf("module name %q: %q must start with a letter", name, part)
		}
		for i := 0; i < len(part); i++ {
			if !isLetter(part[i]) && !isDigit(part[i]) {
				return fmt.Errorf("module name %q: invalid character %q", name, part[i])
			}
		}
	}
	return nil
}

// splitWords turns "ProductReview" into "product review".
func splitWords(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 && isUppercase(s[i]) && !isUppercase(s[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteByte(s[i])
	}
	return strings.ToLower(b.String())
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isUppercase(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
