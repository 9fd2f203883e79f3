package errors

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		message  string
	}{
		{"E100", CategoryConfig, "Configuration file not found"},
		{"E121", CategoryLocale, "Invalid locale file"},
		{"E141", CategoryExport, "Export failed"},
		{"E999", "", "Unknown error"},
	}
	for _, tt := range tests {
		e := New(tt.code)
		if e.Code != tt.code || e.Category != tt.category || e.Message != tt.message {
			t.Errorf("New(%q) = %+v", tt.code, e)
		}
	}
}

func TestErrorString(t *testing.T) {
	e := New("E101").Wrap(stderrors.New("yaml: line 3: bad"))
	if got := e.Error(); got != "E101: Invalid configuration file: yaml: line 3: bad" {
		t.Errorf("Error() = %q", got)
	}
	if got := Newf(CategoryCLI, "need %d args", 2).Error(); got != "need 2 args" {
		t.Errorf("Newf Error() = %q", got)
	}
}

func TestUnwrapAndIs(t *testing.T) {
	e := New("E141").Wrap(fs.ErrPermission)
	if !stderrors.Is(e, fs.ErrPermission) {
		t.Error("errors.Is does not reach the wrapped error")
	}
	if !stderrors.Is(e, New("E141")) {
		t.Error("errors.Is does not match the same code")
	}
	if stderrors.Is(e, New("E140")) {
		t.Error("errors.Is matched a different code")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E101") != nil {
		t.Error("FromError(nil) != nil")
	}
	orig := New("E102")
	wrapped := FromError(orig, "E101")
	if wrapped != orig {
		t.Error("FromError rewrapped an *Error")
	}
	plain := FromError(os.ErrNotExist, "E100")
	if plain.Code != "E100" || plain.Wrapped != os.ErrNotExist {
		t.Errorf("FromError(plain) = %+v", plain)
	}
}

func TestFormatWithLocation(t *testing.T) {
	DisableColors()
	defer EnableColors()

	path := filepath.Join(t.TempDir(), "billform.yaml")
	src := "server:\n  address: \":8080\"\n  shutdown_timeout: soon\nlog:\n  level: info\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New("E101").WithLocation(path, 3, 3).WithSuggestion("durations look like 30s")
	out := e.Format()
	for _, want := range []string{
		"ERROR E101: Invalid configuration file",
		path + ":3:3",
		"→    3 │   shutdown_timeout: soon",
		"   1 │ server:",
		"Hint: durations look like 30s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colors disabled but escape codes present")
	}
}

func TestFormatCompactAndJSON(t *testing.T) {
	e := New("E102").WithDetail("server.address: required")
	e.Location = &Location{File: "billform.json", Line: 2}
	if got := e.FormatCompact(); got != "billform.json:2: E102: Invalid configuration value" {
		t.Errorf("FormatCompact() = %q", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(e.FormatJSON()), &decoded); err != nil {
		t.Fatalf("FormatJSON is not JSON: %v", err)
	}
	if decoded["code"] != "E102" || decoded["detail"] != "server.address: required" {
		t.Errorf("FormatJSON = %v", decoded)
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var b strings.Builder
	Fprint(&b, stderrors.New("plain failure"))
	if !strings.Contains(b.String(), "ERROR plain failure") {
		t.Errorf("plain = %q", b.String())
	}
	b.Reset()
	Fprint(&b, New("E160").WithSuggestion("see --help"))
	if !strings.Contains(b.String(), "E160: Invalid arguments") {
		t.Errorf("coded = %q", b.String())
	}
}

func TestCodesRegistered(t *testing.T) {
	codes := Codes()
	if len(codes) == 0 {
		t.Fatal("no codes registered")
	}
	for i, code := range codes {
		if i > 0 && codes[i-1] >= code {
			t.Errorf("codes not sorted at %q", code)
		}
		tmpl, ok := Lookup(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("template %q = %+v", code, tmpl)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps over the lazy dog", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than 10", l)
		}
	}
	if strings.Join(lines, " ") != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("wrapText lost words: %q", lines)
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") != nil")
	}
}
