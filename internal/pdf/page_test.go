package pdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/portfolio-core/internal/portfolio"
)

func TestPageRenderer_NoBrowser(t *testing.T) {
	r := NewPageRenderer(nil)

	_, err := r.RenderDocument(context.Background(), portfolio.Default())
	assert.ErrorContains(t, err, "no browser configured")

	_, err = r.ExportHTML(context.Background(), "<h1>Jo Lee</h1>", t.TempDir())
	assert.ErrorContains(t, err, "no browser configured")
}
