// Package capture rasterizes a rendered page element. It measures the
// element, waits for web fonts, then tries a high-density capture and falls
// back to a more tolerant one.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"time"
)

// A4WidthPx is the width of an A4 page in CSS pixels at 96 DPI.
const A4WidthPx = 794

// DefaultSettleDelay is the pause after fonts are ready, letting layout settle.
const DefaultSettleDelay = 500 * time.Millisecond

// Box is the rendered geometry of a node in CSS pixels.
type Box struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	ScrollHeight float64 `json:"scrollHeight"`
	OffsetHeight float64 `json:"offsetHeight"`
}

// ContentHeight is the full height of the node including overflow.
func (b Box) ContentHeight() float64 {
	return max(b.ScrollHeight, b.OffsetHeight, b.Height)
}

// ShotOptions tells a Node how to take one screenshot.
type ShotOptions struct {
	// Scale is the device pixel ratio.
	Scale float64
	// Width forces the layout width in CSS pixels; 0 keeps the natural width.
	Width float64
	// FullHeight captures the whole scrollable content, not just the box.
	FullHeight bool
	// Stylesheet applies to the captured copy of the node only.
	Stylesheet string
	// AllowCrossOrigin reloads the page with its content security policy
	// bypassed so assets the policy blocked render. Page state not in the
	// markup is lost.
	AllowCrossOrigin bool
	// Background fills transparent areas, as a CSS hex color.
	Background string
}

// Node is a rendered element that can be measured and captured.
type Node interface {
	Box(ctx context.Context) (Box, error)
	FontsReady(ctx context.Context) error
	// Screenshot returns PNG bytes.
	Screenshot(ctx context.Context, opts ShotOptions) ([]byte, error)
}

// Raster is a captured image.
type Raster struct {
	PNG      []byte
	Width    int
	Height   int
	Scale    float64
	Strategy string
}

// Image decodes the raster.
func (r *Raster) Image() (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(r.PNG))
	if err != nil {
		return nil, fmt.Errorf("failed to decode raster: %w", err)
	}
	return img, nil
}

// NewRaster wraps PNG bytes, reading the pixel size from the header.
func NewRaster(data []byte, scale float64, strategy string) (*Raster, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("screenshot is not a PNG: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("screenshot is empty (%dx%d)", cfg.Width, cfg.Height)
	}
	return &Raster{PNG: data, Width: cfg.Width, Height: cfg.Height, Scale: scale, Strategy: strategy}, nil
}

// Capturer runs the capture strategies.
type Capturer struct {
	PageWidth   float64
	SettleDelay time.Duration
	Primary     Strategy
	Fallback    Strategy
	Verbose     bool
}

// New returns a capturer with the standard strategies.
func New() *Capturer {
	return &Capturer{
		PageWidth:   A4WidthPx,
		SettleDelay: DefaultSettleDelay,
		Primary:     PrimaryStrategy(),
		Fallback:    FallbackStrategy(),
	}
}

// Capture rasterizes node. A node with no rendered area fails with
// ErrNotVisible before any screenshot is attempted.
func (c *Capturer) Capture(ctx context.Context, node Node) (*Raster, error) {
	box, err := node.Box(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to measure node: %w", err)
	}
	if box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("%w (%.0fx%.0f)", ErrNotVisible, box.Width, box.Height)
	}
	if c.Verbose {
		log.Printf("[CAPTURE] Node %.0fx%.0f, content height %.0f", box.Width, box.Height, box.ContentHeight())
	}

	if err := node.FontsReady(ctx); err != nil {
		log.Printf("[CAPTURE] Font readiness unknown, continuing: %v", err)
	}
	if err := sleep(ctx, c.SettleDelay); err != nil {
		return nil, err
	}

	raster, primaryErr := c.attempt(ctx, node, c.Primary)
	if primaryErr == nil {
		return raster, nil
	}
	log.Printf("[CAPTURE] %s capture failed, trying %s: %v", c.Primary.Name, c.Fallback.Name, primaryErr)

	raster, fallbackErr := c.attempt(ctx, node, c.Fallback)
	if fallbackErr == nil {
		return raster, nil
	}

	return nil, &CaptureError{
		Message: "all capture strategies failed",
		Primary: primaryErr,
		Cause:   fallbackErr,
	}
}

func (c *Capturer) attempt(ctx context.Context, node Node, s Strategy) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := s.options(c.PageWidth)
	data, err := node.Screenshot(ctx, opts)
	if err != nil {
		return nil, err
	}

	raster, err := NewRaster(data, opts.Scale, s.Name)
	if err != nil {
		return nil, err
	}
	if c.Verbose {
		log.Printf("[CAPTURE] %s capture produced %dx%d", s.Name, raster.Width, raster.Height)
	}
	return raster, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
