package errors

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Severity represents the severity of a diagnostic
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a problem found while loading or resolving layouts that did
// not stop the pipeline.
type Diagnostic struct {
	Severity  Severity  `json:"severity"`
	Module    string    `json:"module,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	File      string    `json:"file,omitempty"`
	Line      int       `json:"line,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// String formats the diagnostic as file:line: severity: message.
func (d Diagnostic) String() string {
	location := d.File
	if location == "" {
		location = d.Module
	}
	if d.Line > 0 {
		location = fmt.Sprintf("%s:%d", location, d.Line)
	}

	return fmt.Sprintf("%s: %s: %s", location, d.Severity, d.Message)
}

// FromError converts err into a diagnostic, copying any *Error context.
func FromError(severity Severity, err error) Diagnostic {
	d := Diagnostic{Severity: severity, Message: err.Error()}

	var e *Error
	if As(err, &e) {
		d.Module = e.Module
		d.Handle = e.Handle
		d.File = e.FilePath
		d.Line = e.Line
	}

	return d
}

// Collector collects diagnostics from concurrent producers
type Collector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewCollector creates a new diagnostic collector
func NewCollector() *Collector {
	return &Collector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// Add records a diagnostic
func (c *Collector) Add(d Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	c.diagnostics = append(c.diagnostics, d)
}

// AddError records err at the given severity. Nil errors are ignored.
func (c *Collector) AddError(severity Severity, err error) {
	if err == nil {
		return
	}
	c.Add(FromError(severity, err))
}

// All returns a copy of every diagnostic in insertion order
func (c *Collector) All() []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]Diagnostic, len(c.diagnostics))
	copy(result, c.diagnostics)
	return result
}

// HasErrors returns true if any diagnostic has error severity
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, d := range c.diagnostics {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// ByModule returns diagnostics for a specific module
func (c *Collector) ByModule(module string) []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []Diagnostic
	for _, d := range c.diagnostics {
		if d.Module == module {
			out = append(out, d)
		}
	}
	return out
}

// Sorted returns diagnostics ordered by file and line.
func (c *Collector) Sorted() []Diagnostic {
	all := c.All()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].File != all[j].File {
			return all[i].File < all[j].File
		}
		return all[i].Line < all[j].Line
	})
	return all
}

// Len returns the number of diagnostics
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.diagnostics)
}

// Clear removes all diagnostics
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = c.diagnostics[:0]
}
