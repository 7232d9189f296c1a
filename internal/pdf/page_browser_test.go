//go:build browser

package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-core/internal/capture"
	"github.com/jonathan/portfolio-core/internal/portfolio"
)

// Run with: go test -tags browser ./internal/pdf/...

func newTestPageRenderer(t *testing.T) *PageRenderer {
	t.Helper()
	browser, err := capture.NewBrowser(context.Background(), capture.BrowserOptions{})
	if err != nil {
		t.Skipf("chrome not available: %v", err)
	}
	t.Cleanup(browser.Close)
	return NewPageRenderer(browser)
}

func TestPageRenderer_ExportDocument(t *testing.T) {
	r := newTestPageRenderer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	doc := portfolio.Default()
	path, err := r.ExportDocument(ctx, doc, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, FileName(doc.DisplayName()), filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestPageRenderer_ExportHTML(t *testing.T) {
	r := newTestPageRenderer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	page := `<html><body style="margin:0"><div class="resume-card" style="width:794px;height:400px">
		<h1 class="resume-name">Jo Lee</h1></div></body></html>`
	path, err := r.ExportHTML(ctx, page, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Jo_Lee_CV.pdf", filepath.Base(path))
}
