package errors

import (
	"errors"
)

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// WrapIO wraps an I/O failure on path.
func WrapIO(err error, path, message string) *Error {
	e := Wrap(err, ErrorTypeIO, ErrCodeFileNotFound, message)
	if e != nil {
		e.FilePath = path
	}
	return e
}

// WrapTemplate wraps a template parse or execution failure.
func WrapTemplate(err error, templateID string) *Error {
	e := Wrap(err, ErrorTypeTemplate, ErrCodeTemplateInvalid, "template "+templateID+" failed")
	return e
}

// WrapRender wraps a block render failure.
func WrapRender(err error, block string) *Error {
	e := Wrap(err, ErrorTypeBlock, ErrCodeBlockRender, "render failed")
	if e != nil {
		e.Block = block
	}
	return e
}

// FormatError renders err for terminal output, one context item per line.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	out := e.Message
	if e.Code != "" {
		out = e.Code + ": " + out
	}
	for _, kv := range [][2]string{
		{"module", e.Module},
		{"handle", e.Handle},
		{"block", e.Block},
		{"file", e.FilePath},
	} {
		if kv[1] != "" {
			out += "\n  " + kv[0] + ": " + kv[1]
		}
	}
	if e.Cause != nil {
		out += "\n  cause: " + e.Cause.Error()
	}

	return out
}
