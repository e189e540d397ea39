// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/proposal-engine/internal/container"
)

const imageMarkitdown = "markitdown:latest"

// MarkitdownConverter converts PDFs by piping them through the markitdown
// container image.
type MarkitdownConverter struct {
	runtime container.Runtime
}

// NewMarkitdownConverter verifies that the markitdown image exists locally
// in rt before returning.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime) (*MarkitdownConverter, error) {
	if err := rt.ImageExists(ctx, imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt}, nil
}

// Convert pipes the PDF at pdfPath through the markitdown container and
// returns the resulting Markdown.
func (m *MarkitdownConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, imageMarkitdown, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}

	text := Normalize(out.String())
	if text == "" {
		return "", fmt.Errorf("markitdown produced empty output for %s", pdfPath)
	}
	return text, nil
}
