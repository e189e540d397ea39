// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// fakeConverter returns canned text or an error and counts calls.
type fakeConverter struct {
	output string
	err    error
	calls  int
}

func (f *fakeConverter) Convert(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// fakeRuntime implements container.Runtime.
type fakeRuntime struct {
	imageErr error
	output   string
	runErr   error
}

func (f *fakeRuntime) Name() string { return "docker" }
func (f *fakeRuntime) Available(context.Context) bool { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }
func (f *fakeRuntime) Run(_ context.Context, _ string, stdin io.Reader, stdout io.Writer) error {
	if f.runErr != nil {
		return f.runErr
	}
	_, _ = io.ReadAll(stdin)
	_, err := stdout.Write([]byte(f.output))
	return err
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2301.07041.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"form feed", "page one\fpage two", "page one\npage two"},
		{"hyphen wrap", "retrieval-aug-\nmented generation", "retrieval-augmented generation"},
		{"space runs", "a    b\t\tc", "a b c"},
		{"blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"crlf", "a\r\nb", "a\nb"},
		{"trim", "  \n text \n  ", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPdftotextConverter(t *testing.T) {
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })

	var gotArgs []string
	runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte("Title\f\n\n\n\nBody text"), nil
	}

	pdf := writePDF(t)
	text, err := NewPdftotextConverter().Convert(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if text != "Title\n\nBody text" {
		t.Errorf("text = %q", text)
	}
	if gotArgs[0] != "pdftotext" || gotArgs[len(gotArgs)-2] != pdf || gotArgs[len(gotArgs)-1] != "-" {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestPdftotextConverterErrors(t *testing.T) {
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })

	runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if _, err := NewPdftotextConverter().Convert(context.Background(), "x.pdf"); err == nil {
		t.Error("expected error from failing command")
	}

	runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(" \n\f "), nil
	}
	_, err := NewPdftotextConverter().Convert(context.Background(), "x.pdf")
	if err == nil || !strings.Contains(err.Error(), "empty output") {
		t.Errorf("err = %v, want empty output error", err)
	}
}

func TestMarkitdownConverter(t *testing.T) {
	pdf := writePDF(t)

	if _, err := NewMarkitdownConverter(context.Background(), &fakeRuntime{imageErr: errors.New("missing")}); err == nil {
		t.Fatal("expected error when image is missing")
	}

	c, err := NewMarkitdownConverter(context.Background(), &fakeRuntime{output: "# Title\n\nBody"})
	if err != nil {
		t.Fatalf("NewMarkitdownConverter: %v", err)
	}
	text, err := c.Convert(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if text != "# Title\n\nBody" {
		t.Errorf("text = %q", text)
	}

	c, _ = NewMarkitdownConverter(context.Background(), &fakeRuntime{output: "   "})
	if _, err := c.Convert(context.Background(), pdf); err == nil {
		t.Error("expected error for empty output")
	}

	c, _ = NewMarkitdownConverter(context.Background(), &fakeRuntime{})
	if _, err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing PDF")
	}
}

func TestConvertCached(t *testing.T) {
	pdf := writePDF(t)
	fc := &fakeConverter{output: "converted text"}

	for i := 0; i < 2; i++ {
		text, err := ConvertCached(context.Background(), fc, pdf)
		if err != nil {
			t.Fatalf("ConvertCached #%d: %v", i, err)
		}
		if text != "converted text" {
			t.Errorf("text = %q", text)
		}
	}
	if fc.calls != 1 {
		t.Errorf("converter calls = %d, want 1", fc.calls)
	}
	if _, err := os.Stat(strings.TrimSuffix(pdf, ".pdf") + ".txt"); err != nil {
		t.Errorf("sidecar text file missing: %v", err)
	}
}

func TestConvertCachedPropagatesError(t *testing.T) {
	pdf := writePDF(t)
	fc := &fakeConverter{err: errors.New("boom")}
	if _, err := ConvertCached(context.Background(), fc, pdf); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(strings.TrimSuffix(pdf, ".pdf") + ".txt"); !os.IsNotExist(err) {
		t.Errorf("no sidecar should be written on failure, stat err = %v", err)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), types.ConversionBackend("grobid")); err == nil {
		t.Error("expected error for unknown backend")
	}
	c, err := New(context.Background(), types.BackendPdftotext)
	if err != nil {
		t.Fatalf("New(pdftotext): %v", err)
	}
	if _, ok := c.(*PdftotextConverter); !ok {
		t.Errorf("New(pdftotext) = %T", c)
	}
}
