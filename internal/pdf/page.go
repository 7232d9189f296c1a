package pdf

import (
	"context"
	"fmt"

	"github.com/jonathan/portfolio-core/internal/capture"
	"github.com/jonathan/portfolio-core/internal/fetch"
	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/jonathan/portfolio-core/internal/rendering"
)

// PageRenderer renders a document's resume page in a browser tab and
// exports the card as a PDF.
type PageRenderer struct {
	Browser  *capture.Browser
	Exporter *Exporter
	Selector string
	Page     rendering.Options
}

// NewPageRenderer returns a renderer capturing the default resume card.
func NewPageRenderer(browser *capture.Browser) *PageRenderer {
	return &PageRenderer{
		Browser:  browser,
		Exporter: NewExporter(),
		Selector: capture.DefaultSelector,
	}
}

// RenderDocument renders doc into a fresh tab and assembles the PDF.
// The tab is closed when ctx is cancelled or rendering finishes.
func (p *PageRenderer) RenderDocument(ctx context.Context, doc portfolio.Document) (*Document, error) {
	tab, closeTab, err := p.open(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer closeTab()
	return p.Exporter.Render(tab, capture.NewChromeNode(p.Selector))
}

// ExportDocument renders doc and writes it under path.
func (p *PageRenderer) ExportDocument(ctx context.Context, doc portfolio.Document, path string) (string, error) {
	tab, closeTab, err := p.open(ctx, doc)
	if err != nil {
		return "", err
	}
	defer closeTab()
	return p.Exporter.Export(tab, capture.NewChromeNode(p.Selector), path, FileName(doc.DisplayName()))
}

// ExportHTML captures an already rendered resume page. The file name comes
// from the name shown on the page.
func (p *PageRenderer) ExportHTML(ctx context.Context, html, path string) (string, error) {
	name, err := fetch.ExtractDisplayName(html)
	if err != nil {
		return "", err
	}
	tab, closeTab, err := p.openHTML(ctx, html)
	if err != nil {
		return "", err
	}
	defer closeTab()
	return p.Exporter.Export(tab, capture.NewChromeNode(p.Selector), path, FileName(name))
}

func (p *PageRenderer) open(ctx context.Context, doc portfolio.Document) (context.Context, func(), error) {
	html, err := rendering.RenderHTML(doc, p.Page)
	if err != nil {
		return nil, nil, err
	}
	return p.openHTML(ctx, html)
}

func (p *PageRenderer) openHTML(ctx context.Context, html string) (context.Context, func(), error) {
	if p.Browser == nil {
		return nil, nil, fmt.Errorf("no browser configured")
	}
	tab, cancel, err := p.Browser.OpenHTML(html)
	if err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, cancel)
	return tab, func() {
		stop()
		cancel()
	}, nil
}
