package pdf

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jonathan/portfolio-core/internal/capture"
)

// Exporter captures a node and writes it out as a PDF.
type Exporter struct {
	Capturer  *capture.Capturer
	Assembler *Assembler
	Verbose   bool
}

// NewExporter returns an exporter with the standard capturer and assembler.
func NewExporter() *Exporter {
	return &Exporter{
		Capturer:  capture.New(),
		Assembler: NewAssembler(),
	}
}

// Render captures node and assembles the PDF without writing it.
func (e *Exporter) Render(ctx context.Context, node capture.Node) (*Document, error) {
	raster, err := e.Capturer.Capture(ctx, node)
	if err != nil {
		return nil, err
	}
	doc, err := e.Assembler.Assemble(raster)
	if err != nil {
		return nil, err
	}
	if e.Verbose {
		log.Printf("[PDF] Rendered with %s strategy", raster.Strategy)
	}
	return doc, nil
}

// Export renders node and writes the PDF to path, creating parent
// directories as needed. When path is a directory, name is appended.
func (e *Exporter) Export(ctx context.Context, node capture.Node, path, name string) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, name)
	}

	doc, err := e.Render(ctx, node)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, doc.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write PDF: %w", err)
	}
	log.Printf("[PDF] Wrote %s (%d bytes)", path, len(doc.Bytes()))
	return path, nil
}
