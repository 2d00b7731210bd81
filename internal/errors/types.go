// Package errors defines the structured error type shared by the layout
// pipeline, the block factory and the CLI.
//
// Errors carry a category, a machine readable code and optional location
// context (module, handle, block, file). Two errors are considered equal by
// errors.Is when their type and code match, which lets callers compare
// against the sentinel constructors in this package:
//
//	if errors.Is(err, ErrBlockTypeNotFound("")) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeLayout     ErrorType = "layout"
	ErrorTypeBlock      ErrorType = "block"
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeModule     ErrorType = "module"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeMalformedLayout   = "ERR_MALFORMED_LAYOUT"
	ErrCodeUnsafeHandle      = "ERR_UNSAFE_HANDLE"
	ErrCodeBlockTypeNotFound = "ERR_BLOCK_TYPE_NOT_FOUND"
	ErrCodeBlockNotFound     = "ERR_BLOCK_NOT_FOUND"
	ErrCodeBlockRender       = "ERR_BLOCK_RENDER"
	ErrCodeTemplateNotFound  = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeTemplateInvalid   = "ERR_TEMPLATE_INVALID"
	ErrCodeModuleCycle       = "ERR_MODULE_CYCLE"
	ErrCodeUnknownDependency = "ERR_UNKNOWN_DEPENDENCY"
	ErrCodeDuplicateModule   = "ERR_DUPLICATE_MODULE"
	ErrCodeInvalidManifest   = "ERR_INVALID_MANIFEST"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeNoHandles         = "ERR_NO_HANDLES"
)

// Error is a structured error type with pipeline context.
type Error struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Module   string
	Handle   string
	Block    string
	FilePath string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Module != "" {
		parts = append(parts, "module:"+e.Module)
	}
	if e.Handle != "" {
		parts = append(parts, "handle:"+e.Handle)
	}
	if e.Block != "" {
		parts = append(parts, "block:"+e.Block)
	}
	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel constructors can be used as targets.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithModule adds module context.
func (e *Error) WithModule(module string) *Error {
	e.Module = module

	return e
}

// WithHandle adds layout handle context.
func (e *Error) WithHandle(handle string) *Error {
	e.Handle = handle

	return e
}

// WithBlock adds block name context.
func (e *Error) WithBlock(block string) *Error {
	e.Block = block

	return e
}

// WithLocation adds file location information.
func (e *Error) WithLocation(filePath string, line int) *Error {
	e.FilePath = filePath
	e.Line = line

	return e
}

// New creates an error of the given type.
func New(errType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps err, keeping any location context it already carries.
func Wrap(err error, errType ErrorType, code, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}

	var inner *Error
	if errors.As(err, &inner) {
		wrapped.Module = inner.Module
		wrapped.Handle = inner.Handle
		wrapped.Block = inner.Block
		wrapped.FilePath = inner.FilePath
		wrapped.Line = inner.Line
	}

	return wrapped
}

// IsType reports whether any error in err's chain is an *Error of errType.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}

	return false
}

// Code returns the code of the first *Error in err's chain, or "".
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ""
}

// Sentinel constructors

// ErrMalformedLayout reports a layout file that failed to parse.
func ErrMalformedLayout(path string, cause error) *Error {
	return &Error{
		Type:     ErrorTypeLayout,
		Code:     ErrCodeMalformedLayout,
		Message:  "malformed layout XML",
		Cause:    cause,
		FilePath: path,
	}
}

// ErrUnsafeHandle reports a handle that cannot be mapped to a file name.
func ErrUnsafeHandle(handle string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeUnsafeHandle,
		Message: "handle is not a valid layout file name",
		Handle:  handle,
	}
}

// ErrBlockTypeNotFound reports a type reference the factory cannot resolve.
func ErrBlockTypeNotFound(typeRef string) *Error {
	return &Error{
		Type:    ErrorTypeBlock,
		Code:    ErrCodeBlockTypeNotFound,
		Message: fmt.Sprintf("block type %q not found", typeRef),
	}
}

// ErrBlockNotFound reports a named block missing from a built tree.
func ErrBlockNotFound(name string) *Error {
	return &Error{
		Type:    ErrorTypeBlock,
		Code:    ErrCodeBlockNotFound,
		Message: "block not found",
		Block:   name,
	}
}

// ErrTemplateNotFound reports a template id with no file behind it.
func ErrTemplateNotFound(id string) *Error {
	return &Error{
		Type:    ErrorTypeTemplate,
		Code:    ErrCodeTemplateNotFound,
		Message: fmt.Sprintf("template %q not found", id),
	}
}

// ErrModuleCycle reports a dependency cycle between modules.
func ErrModuleCycle(path []string) *Error {
	return &Error{
		Type:    ErrorTypeModule,
		Code:    ErrCodeModuleCycle,
		Message: "module dependency cycle: " + strings.Join(path, " -> "),
	}
}

// ErrUnknownDependency reports a module sequence entry with no module behind it.
func ErrUnknownDependency(module, dependency string) *Error {
	return &Error{
		Type:    ErrorTypeModule,
		Code:    ErrCodeUnknownDependency,
		Message: fmt.Sprintf("depends on unknown module %q", dependency),
		Module:  module,
	}
}

// ErrDuplicateModule reports a module declared twice.
func ErrDuplicateModule(module string) *Error {
	return &Error{
		Type:    ErrorTypeModule,
		Code:    ErrCodeDuplicateModule,
		Message: "module declared more than once",
		Module:  module,
	}
}

// ErrConfigInvalid reports an invalid configuration value.
func ErrConfigInvalid(message string) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
	}
}
