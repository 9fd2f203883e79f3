package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
)

// Category groups errors by the subsystem that raised them.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryLocale  Category = "locale"
	CategoryExport  Category = "export"
	CategoryCLI     Category = "cli"
	CategoryRuntime Category = "runtime"
)

// Location is a position in a file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns file:line[:column].
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a coded error with optional location and hint.
type Error struct {
	Code       string
	Category   Category
	Message    string
	Detail     string
	Location   *Location
	Context    []string // lines around Location
	Suggestion string
	Wrapped    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code != "" && t.Code == e.Code
}

// WithLocation points the error at file:line and captures the lines
// around it.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a hint on how to fix the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail replaces the registered explanation.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap records the underlying error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

func readContextLines(filename string, targetLine, size int) []string {
	f, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer f.Close()

	start := targetLine - size/2
	end := targetLine + size/2
	var lines []string
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan() && n <= end; n++ {
		if n >= start {
			lines = append(lines, sc.Text())
		}
	}
	return lines
}

// New creates an error from a registered code. Unregistered codes yield a
// generic message so that a typo never hides the failure.
func New(code string) *Error {
	t, ok := registry[code]
	if !ok {
		return &Error{Code: code, Message: "Unknown error"}
	}
	return &Error{
		Code:     code,
		Category: t.Category,
		Message:  t.Message,
		Detail:   t.Detail,
	}
}

// Newf creates an uncoded error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

// FromError returns err itself if it already is an *Error anywhere in its
// chain, otherwise wraps it under code.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}
