package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// DefaultSelector is the resume card element captured for PDF export.
const DefaultSelector = ".resume-card"

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	// ExecPath overrides the Chrome binary; empty uses the default lookup.
	ExecPath string
	// LoadTimeout bounds navigation and document loading.
	LoadTimeout time.Duration
	Verbose     bool
}

// Browser is a headless Chrome instance. Tabs opened from it are chromedp
// contexts; pass them (or contexts derived from them) to Capturer.Capture
// together with a ChromeNode.
type Browser struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	opts          BrowserOptions
}

// NewBrowser starts Chrome. Requires Chrome/Chromium to be installed.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	if opts.Verbose {
		log.Printf("[BROWSER] Starting headless browser")
	}
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Browser{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		opts:          opts,
	}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// Open loads url in a new tab and waits for the body to be ready.
func (b *Browser) Open(url string) (context.Context, context.CancelFunc, error) {
	return b.open(chromedp.Navigate(url))
}

// OpenHTML loads an HTML document into a new tab.
func (b *Browser) OpenHTML(html string) (context.Context, context.CancelFunc, error) {
	return b.open(
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
	)
}

func (b *Browser) open(load ...chromedp.Action) (context.Context, context.CancelFunc, error) {
	tab, cancelTab := chromedp.NewContext(b.browserCtx)

	loadCtx, cancelLoad := context.WithTimeout(tab, b.opts.LoadTimeout)
	defer cancelLoad()

	actions := append(load, chromedp.WaitReady("body"))
	if err := chromedp.Run(loadCtx, actions...); err != nil {
		cancelTab()
		return nil, nil, fmt.Errorf("failed to load page: %w", err)
	}
	if b.opts.Verbose {
		log.Printf("[BROWSER] Page ready")
	}
	return tab, cancelTab, nil
}

// PageHTML returns the outer HTML of the tab's document.
func PageHTML(tab context.Context) (string, error) {
	var html string
	if err := chromedp.Run(tab, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// ChromeNode is an element in a chromedp tab, located by CSS selector.
// Its methods must be called with the tab's context.
type ChromeNode struct {
	Selector string
}

// NewChromeNode returns a node for selector, defaulting to the resume card.
func NewChromeNode(selector string) *ChromeNode {
	if selector == "" {
		selector = DefaultSelector
	}
	return &ChromeNode{Selector: selector}
}

const measureJS = `(function(sel) {
  const el = document.querySelector(sel);
  if (!el) return {found: false};
  const r = el.getBoundingClientRect();
  return {
    found: true,
    x: r.left + window.scrollX,
    y: r.top + window.scrollY,
    width: r.width,
    height: r.height,
    scrollHeight: el.scrollHeight,
    offsetHeight: el.offsetHeight
  };
})(%s)`

const fontsReadyJS = `(document.fonts && document.fonts.ready) ? document.fonts.ready.then(() => true) : true`

// cloneRootID holds the off-flow copy of the node that is styled and
// captured; the live node is never modified.
const cloneRootID = "__portfolio_capture_root"

// cloneSelector locates the copy made by prepareJS.
const cloneSelector = "#" + cloneRootID + " > [data-portfolio-capture]"

const prepareJS = `(function(sel, rootId, css, width) {
  const el = document.querySelector(sel);
  if (!el) return false;
  const root = document.createElement('div');
  root.id = rootId;
  const top = Math.max(document.documentElement.scrollHeight, document.body.scrollHeight) + 100;
  root.setAttribute('style', 'position:absolute;left:0;top:' + top + 'px;margin:0;padding:0;border:0;');
  const clone = el.cloneNode(true);
  clone.setAttribute('data-portfolio-capture', '');
  if (width > 0) {
    clone.style.width = width + 'px';
    clone.style.maxWidth = width + 'px';
    clone.style.height = 'auto';
  }
  const style = document.createElement('style');
  style.id = rootId + '_style';
  style.textContent = '#' + rootId + ' { ' + css + ' }';
  document.head.appendChild(style);
  root.appendChild(clone);
  document.body.appendChild(root);
  return true;
})(%s, %s, %s, %s)`

const restoreJS = `(function(rootId) {
  const root = document.getElementById(rootId);
  if (root) root.remove();
  const style = document.getElementById(rootId + '_style');
  if (style) style.remove();
  return true;
})(%s)`

const locationJS = `location.href`

const documentHTMLJS = `document.documentElement.outerHTML`

const viewportJS = `[window.innerWidth, window.innerHeight]`

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Box implements Node.
func (n *ChromeNode) Box(ctx context.Context) (Box, error) {
	var box Box
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		box, err = n.measure(ctx)
		return err
	}))
	return box, err
}

// measure runs inside an action executor.
func (n *ChromeNode) measure(ctx context.Context) (Box, error) {
	return measureSelector(ctx, n.Selector)
}

func measureSelector(ctx context.Context, selector string) (Box, error) {
	var measured struct {
		Found bool `json:"found"`
		Box
	}
	if err := chromedp.Evaluate(fmt.Sprintf(measureJS, jsString(selector)), &measured).Do(ctx); err != nil {
		return Box{}, fmt.Errorf("failed to measure %s: %w", selector, err)
	}
	if !measured.Found {
		return Box{}, fmt.Errorf("%s: %w", selector, ErrNodeNotFound)
	}
	return measured.Box, nil
}

// FontsReady implements Node by awaiting document.fonts.ready.
func (n *ChromeNode) FontsReady(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(awaitFonts))
}

func awaitFonts(ctx context.Context) error {
	var ready bool
	return chromedp.Evaluate(fontsReadyJS, &ready, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}).Do(ctx)
}

// bypassCSP turns off the page's content security policy and reloads the
// document, since the policy is bound when a document loads. Pages set from
// HTML are reloaded from their current markup. The returned func turns the
// bypass off again for later loads.
func bypassCSP(ctx context.Context) (func(), error) {
	if err := page.SetBypassCSP(true).Do(ctx); err != nil {
		return nil, fmt.Errorf("bypass CSP: %w", err)
	}
	reset := func() { _ = page.SetBypassCSP(false).Do(ctx) }

	var href string
	if err := chromedp.Evaluate(locationJS, &href).Do(ctx); err != nil {
		reset()
		return nil, fmt.Errorf("read page location: %w", err)
	}

	var err error
	if strings.HasPrefix(href, "about:") {
		err = reloadContent(ctx)
	} else {
		err = chromedp.Reload().Do(ctx)
	}
	if err == nil {
		err = chromedp.WaitReady("body").Do(ctx)
	}
	if err == nil {
		err = awaitFonts(ctx)
	}
	if err != nil {
		reset()
		return nil, fmt.Errorf("reload without CSP: %w", err)
	}
	return reset, nil
}

func reloadContent(ctx context.Context) error {
	var html string
	if err := chromedp.Evaluate(documentHTMLJS, &html).Do(ctx); err != nil {
		return err
	}
	tree, err := page.GetFrameTree().Do(ctx)
	if err != nil {
		return err
	}
	return page.SetDocumentContent(tree.Frame.ID, "<!DOCTYPE html>"+html).Do(ctx)
}

// Screenshot implements Node.
func (n *ChromeNode) Screenshot(ctx context.Context, opts ShotOptions) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if opts.AllowCrossOrigin {
			reset, err := bypassCSP(ctx)
			if err != nil {
				return err
			}
			defer reset()
		}
		if opts.Background != "" {
			color, err := parseHexColor(opts.Background)
			if err != nil {
				return err
			}
			if err := emulation.SetDefaultBackgroundColorOverride().WithColor(color).Do(ctx); err != nil {
				return fmt.Errorf("set background: %w", err)
			}
			defer func() { _ = emulation.SetDefaultBackgroundColorOverride().Do(ctx) }()
		}

		var viewport [2]float64
		if err := chromedp.Evaluate(viewportJS, &viewport).Do(ctx); err != nil {
			return fmt.Errorf("read viewport: %w", err)
		}
		width := int64(math.Max(viewport[0], opts.Width))
		if err := emulation.SetDeviceMetricsOverride(width, int64(viewport[1]), opts.Scale, false).Do(ctx); err != nil {
			return fmt.Errorf("set device metrics: %w", err)
		}
		defer func() { _ = emulation.ClearDeviceMetricsOverride().Do(ctx) }()

		var ok bool
		prepare := fmt.Sprintf(prepareJS, jsString(n.Selector), jsString(cloneRootID), jsString(opts.Stylesheet),
			strconv.FormatFloat(opts.Width, 'f', -1, 64))
		if err := chromedp.Evaluate(prepare, &ok).Do(ctx); err != nil {
			return fmt.Errorf("clone node for capture: %w", err)
		}
		defer func() { _ = chromedp.Evaluate(fmt.Sprintf(restoreJS, jsString(cloneRootID)), &ok).Do(ctx) }()
		if !ok {
			return fmt.Errorf("%s: %w", n.Selector, ErrNodeNotFound)
		}

		box, err := measureSelector(ctx, cloneSelector)
		if err != nil {
			return err
		}
		clipWidth := box.Width
		if opts.Width > 0 {
			clipWidth = opts.Width
		}
		clipHeight := box.Height
		if opts.FullHeight {
			clipHeight = box.ContentHeight()
		}

		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithFromSurface(true).
			WithClip(&page.Viewport{X: box.X, Y: box.Y, Width: clipWidth, Height: clipHeight, Scale: 1}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot of %s failed: %w", n.Selector, err)
	}
	return buf, nil
}

func parseHexColor(s string) (*cdp.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return nil, fmt.Errorf("unsupported color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("unsupported color %q: %w", s, err)
	}
	return &cdp.RGBA{R: int64(v >> 16 & 0xff), G: int64(v >> 8 & 0xff), B: int64(v & 0xff), A: 1}, nil
}
