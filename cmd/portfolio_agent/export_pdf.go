package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/portfolio-core/internal/capture"
	"github.com/jonathan/portfolio-core/internal/config"
	"github.com/jonathan/portfolio-core/internal/pdf"
	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/jonathan/portfolio-core/internal/rendering"
)

var exportPDFCmd = &cobra.Command{
	Use:   "export-pdf",
	Short: "Export the resume card as a PDF",
	Long: `Renders the resume sections of the portfolio into the resume card page, captures
it in a headless browser and writes a single-page PDF named <Display_Name>_CV.pdf.

The document comes from the configured store unless --from names a JSON file.
--page captures a saved resume page as is; the file name then comes from the
name shown on the page.`,
	RunE: runExportPDF,
}

var (
	exportPDFOut        string
	exportPDFFrom       string
	exportPDFPage       string
	exportPDFTemplate   string
	exportPDFSelector   string
	exportPDFChromePath string
	exportPDFTimeout    time.Duration
)

func init() {
	exportPDFCmd.Flags().StringVarP(&exportPDFOut, "out", "o", "", "Output file or directory (default: current directory)")
	exportPDFCmd.Flags().StringVar(&exportPDFFrom, "from", "", "Render this portfolio JSON file instead of the stored document")
	exportPDFCmd.Flags().StringVar(&exportPDFPage, "page", "", "Capture this saved HTML page instead of rendering a document")
	exportPDFCmd.Flags().StringVarP(&exportPDFTemplate, "template", "t", "", "HTML template for the resume page")
	exportPDFCmd.Flags().StringVar(&exportPDFSelector, "selector", "", "CSS selector of the element to capture (default: "+capture.DefaultSelector+")")
	exportPDFCmd.Flags().StringVar(&exportPDFChromePath, "chrome-path", "", "Chrome binary override")
	exportPDFCmd.Flags().DurationVar(&exportPDFTimeout, "timeout", 2*time.Minute, "Overall export timeout")

	rootCmd.AddCommand(exportPDFCmd)
}

func runExportPDF(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutputDir = exportPDFOut
	}
	if flags.Changed("template") {
		cfg.Template = exportPDFTemplate
	}
	if flags.Changed("selector") {
		cfg.Selector = exportPDFSelector
	}
	if flags.Changed("chrome-path") {
		cfg.ChromePath = exportPDFChromePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if exportPDFFrom != "" && exportPDFPage != "" {
		return fmt.Errorf("--from and --page cannot be combined")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), exportPDFTimeout)
	defer cancel()

	var (
		doc  portfolio.Document
		page string
	)
	if exportPDFPage != "" {
		data, err := os.ReadFile(exportPDFPage)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", exportPDFPage, err)
		}
		page = string(data)
	} else if doc, err = documentForExport(ctx, cfg, exportPDFFrom); err != nil {
		return err
	}

	browser, err := capture.NewBrowser(ctx, capture.BrowserOptions{ExecPath: cfg.ChromePath, Verbose: cfg.Verbose})
	if err != nil {
		return err
	}
	defer browser.Close()

	renderer := newPageRenderer(browser, cfg)
	var path string
	if page != "" {
		path, err = renderer.ExportHTML(ctx, page, cfg.OutputDir)
	} else {
		path, err = renderer.ExportDocument(ctx, doc, cfg.OutputDir)
	}
	if err != nil {
		return fmt.Errorf("failed to export PDF: %w", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
	return nil
}

func newPageRenderer(browser *capture.Browser, cfg config.Config) *pdf.PageRenderer {
	r := pdf.NewPageRenderer(browser)
	r.Page = rendering.Options{TemplatePath: cfg.Template}
	if cfg.Selector != "" {
		r.Selector = cfg.Selector
	}
	r.Exporter.Verbose = cfg.Verbose
	r.Exporter.Capturer.Verbose = cfg.Verbose
	r.Exporter.Assembler.Verbose = cfg.Verbose
	return r
}

// documentForExport reads the --from file, or the stored document.
func documentForExport(ctx context.Context, cfg config.Config, from string) (portfolio.Document, error) {
	if from != "" {
		f, err := os.Open(from)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", from, err)
		}
		defer f.Close()
		doc, err := portfolio.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", from, err)
		}
		return doc, nil
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close(context.Background()) }()
	return st.Document(), nil
}
