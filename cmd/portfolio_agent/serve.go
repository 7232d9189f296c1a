package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/portfolio-core/internal/capture"
	"github.com/jonathan/portfolio-core/internal/config"
	"github.com/jonathan/portfolio-core/internal/rendering"
	"github.com/jonathan/portfolio-core/internal/server"
	"github.com/jonathan/portfolio-core/internal/store"
)

var (
	servePort       int
	serveOpen       bool
	serveNoPDF      bool
	serveChromePath string
	serveTemplate   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portfolio editor API server",
	Long: `Start an HTTP server exposing the portfolio document, the editor write routes,
a change event stream and resume PDF export.

Editor routes require a login configured with PORTFOLIO_ADMIN_PASSWORD (or
PORTFOLIO_ADMIN_PASSWORD_HASH) and JWT_SECRET unless --open is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Serve editor routes without a login (local use only)")
	serveCmd.Flags().BoolVar(&serveNoPDF, "no-pdf", false, "Do not start a headless browser; PDF export answers 503")
	serveCmd.Flags().StringVar(&serveChromePath, "chrome-path", "", "Chrome binary override")
	serveCmd.Flags().StringVarP(&serveTemplate, "template", "t", "", "HTML template for the resume page")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("chrome-path") {
		cfg.ChromePath = serveChromePath
	}
	if cmd.Flags().Changed("template") {
		cfg.Template = serveTemplate
	}

	var auth *config.AuthConfig
	if !serveOpen {
		if auth, err = config.NewAuthConfig(); err != nil {
			return fmt.Errorf("login is not configured (use --open to skip it): %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Printf("[STORE] Close failed: %v", err)
		}
	}()

	page := rendering.Options{TemplatePath: cfg.Template}
	var renderer server.DocumentRenderer
	if !serveNoPDF {
		browser, err := capture.NewBrowser(ctx, capture.BrowserOptions{ExecPath: cfg.ChromePath, Verbose: cfg.Verbose})
		if err != nil {
			log.Printf("[PDF] Export disabled: %v", err)
		} else {
			defer browser.Close()
			renderer = newPageRenderer(browser, cfg)
		}
	}

	srv, err := server.New(server.Config{
		Port:     servePort,
		Store:    st.Store,
		Renderer: renderer,
		Page:     page,
		Auth:     auth,
		Verbose:  cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		watchStore(gctx, st.Store)
		return nil
	})
	return g.Wait()
}

// watchStore logs synchronisation and persistence events until ctx ends.
func watchStore(ctx context.Context, st *store.Store) {
	unsubscribe := st.Subscribe(func(ev store.Event) {
		switch ev.Type {
		case store.EventConflict:
			log.Printf("[SYNC] Local changes from %d replaced by a newer write", ev.Discarded)
		case store.EventSynced:
			log.Printf("[SYNC] Portfolio updated by another process (lastUpdated=%d)", ev.LastUpdated)
		case store.EventPersistFailed:
			log.Printf("[STORE] Background write failed: %v", ev.Err)
		case store.EventReset:
			log.Printf("[STORE] Portfolio reset to defaults")
		}
	})
	defer unsubscribe()
	<-ctx.Done()
}
