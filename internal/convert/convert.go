// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded PDFs into plain text or Markdown for the
// document summarizer, with pluggable backends.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/proposal-engine/internal/container"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Converter transforms a PDF file into text.
type Converter interface {
	// Convert reads a PDF at pdfPath and returns its text content.
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// New returns the converter for backend. The markitdown backend needs a
// working container runtime with the image pulled.
func New(ctx context.Context, backend types.ConversionBackend) (Converter, error) {
	switch backend {
	case types.BackendPdftotext, "":
		return NewPdftotextConverter(), nil
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownConverter(ctx, rt)
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", backend)
	}
}

// runCommand executes name with args and returns stdout. Tests replace it.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// PdftotextConverter shells out to poppler's pdftotext.
type PdftotextConverter struct {
	bin string
}

// NewPdftotextConverter returns a converter that runs pdftotext from PATH.
func NewPdftotextConverter() *PdftotextConverter {
	return &PdftotextConverter{bin: "pdftotext"}
}

// Convert runs "pdftotext -layout <pdf> -" and normalizes the output.
func (p *PdftotextConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	out, err := runCommand(ctx, p.bin, "-layout", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return "", fmt.Errorf("converting %s with pdftotext: %w", pdfPath, err)
	}
	text := Normalize(string(out))
	if text == "" {
		return "", fmt.Errorf("pdftotext produced empty output for %s", pdfPath)
	}
	return text, nil
}

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]{2,}`)
	hyphenWrap = regexp.MustCompile(`(\w)-\n(\w)`)
)

// Normalize cleans extracted PDF text: form feeds become newlines, words
// hyphenated across lines are rejoined, and runs of blanks collapse.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	text = hyphenWrap.ReplaceAllString(text, "$1$2")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ConvertCached converts pdfPath and stores the text next to it as a .txt
// file. An existing .txt is returned without running the converter.
func ConvertCached(ctx context.Context, c Converter, pdfPath string) (string, error) {
	txtPath := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
	if data, err := os.ReadFile(txtPath); err == nil && len(data) > 0 {
		return string(data), nil
	}

	text, err := c.Convert(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", txtPath, err)
	}
	return text, nil
}
