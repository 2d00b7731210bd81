package blocks

import (
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/stratum/internal/errors"
)

// Constructor creates a Block for one node.
type Constructor func() Block

// Factory resolves type references to blocks. Lookups ignore case.
type Factory struct {
	constructors map[string]registration
	aliases      map[string]string
	mutex        sync.RWMutex
}

type registration struct {
	name string
	ctor Constructor
}

// NewFactory creates a factory with the built-in types registered. resolver
// backs the Template type and may be nil when no templates are used.
func NewFactory(resolver *TemplateResolver) *Factory {
	f := &Factory{
		constructors: make(map[string]registration),
		aliases:      make(map[string]string),
	}

	f.Register(TypeContainer, func() Block { return Container{} })
	f.Register(TypeText, func() Block { return Text{} })
	f.Register(TypeHTML, func() Block { return HTML{} })
	f.Register(TypeTemplate, func() Block { return Template{Resolver: resolver} })
	f.Register(TypeFallback, func() Block { return Fallback{} })

	for alias, target := range DefaultAliases {
		f.Alias(alias, target)
	}
	return f
}

// DefaultAliases maps framework class names onto built-in types.
var DefaultAliases = map[string]string{
	`Magento\Framework\View\Element\Template`:  TypeTemplate,
	`Magento\Framework\View\Element\Text`:      TypeText,
	`Magento\Framework\View\Element\Html`:      TypeHTML,
	`Magento\Framework\View\Element\Container`: TypeContainer,
}

// Register adds or replaces the constructor for typeRef.
func (f *Factory) Register(typeRef string, ctor Constructor) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	name := strings.TrimPrefix(strings.TrimSpace(typeRef), `\`)
	f.constructors[normalizeType(typeRef)] = registration{name: name, ctor: ctor}
}

// Alias makes alias resolve to the same constructor as target.
func (f *Factory) Alias(alias, target string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.aliases[normalizeType(alias)] = normalizeType(target)
}

// Remove unregisters typeRef.
func (f *Factory) Remove(typeRef string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	delete(f.constructors, normalizeType(typeRef))
}

// Resolve returns a new block for typeRef. An empty reference resolves to
// Template.
func (f *Factory) Resolve(typeRef string) (Block, error) {
	key := normalizeType(typeRef)
	if key == "" {
		key = normalizeType(TypeTemplate)
	}

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if target, ok := f.aliases[key]; ok {
		if _, direct := f.constructors[key]; !direct {
			key = target
		}
	}
	reg, ok := f.constructors[key]
	if !ok || reg.ctor == nil {
		return nil, errors.ErrBlockTypeNotFound(typeRef)
	}
	return reg.ctor(), nil
}

// Types returns every registered type, sorted.
func (f *Factory) Types() []string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	out := make([]string, 0, len(f.constructors))
	for _, reg := range f.constructors {
		out = append(out, reg.name)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered types
func (f *Factory) Count() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	return len(f.constructors)
}

// normalizeType trims whitespace and a leading namespace separator and
// lowercases the result.
func normalizeType(typeRef string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(typeRef), `\`))
}
