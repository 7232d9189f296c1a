package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/jonathan/portfolio-core/internal/schemas"
	"github.com/jonathan/portfolio-core/internal/store"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect and maintain the stored portfolio",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the portfolio document as JSON",
	Long: `Writes the current portfolio document as indented JSON to --out (or stdout).

With --as-manifest the document is validated against the portfolio schema first so the
file can be published as the manifest used when nothing is stored.`,
	Args: cobra.NoArgs,
	RunE: runDataExport,
}

var dataImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the portfolio with a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataImport,
}

var dataResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the built-in default portfolio",
	Args:  cobra.NoArgs,
	RunE:  runDataReset,
}

var dataShowCmd = &cobra.Command{
	Use:   "show [section]",
	Short: "Print the portfolio or one section",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDataShow,
}

var dataValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a portfolio JSON file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataValidate,
}

var (
	dataExportOut        string
	dataExportAsManifest bool
	dataImportValidate   bool
	dataResetYes         bool
)

func init() {
	dataExportCmd.Flags().StringVarP(&dataExportOut, "out", "o", "", "Output file (default: stdout)")
	dataExportCmd.Flags().BoolVar(&dataExportAsManifest, "as-manifest", false, "Validate against the schema and write a publishable manifest")
	dataImportCmd.Flags().BoolVar(&dataImportValidate, "validate", false, "Check the file against the portfolio schema before importing")
	dataResetCmd.Flags().BoolVarP(&dataResetYes, "yes", "y", false, "Confirm the reset")

	dataCmd.AddCommand(dataExportCmd, dataImportCmd, dataResetCmd, dataShowCmd, dataValidateCmd)
	rootCmd.AddCommand(dataCmd)
}

// withStore opens the configured store, runs fn and flushes on the way out.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := fn(ctx, st.Store)
	closeErr := st.Close(context.Background())
	return errors.Join(runErr, closeErr)
}

func runDataExport(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(_ context.Context, st *store.Store) error {
		return exportDocument(st, dataExportOut, dataExportAsManifest, cmd.OutOrStdout())
	})
}

// exportDocument writes the snapshot to path, or to stdout when path is empty.
func exportDocument(st *store.Store, path string, asManifest bool, stdout io.Writer) error {
	data, err := st.ExportSnapshot()
	if err != nil {
		return err
	}
	if asManifest {
		if err := schemas.ValidateDocument(data); err != nil {
			return fmt.Errorf("portfolio is not a valid manifest: %w", err)
		}
	}

	if path == "" {
		_, err := stdout.Write(append(data, '\n'))
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}

func runDataImport(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		if err := importDocument(ctx, st, args[0], dataImportValidate); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", args[0])
		return nil
	})
}

// importDocument replaces the stored document with the file at path and
// writes it through. Without validateSchema only the top-level object is
// checked.
func importDocument(ctx context.Context, st *store.Store, path string, validateSchema bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if validateSchema {
		if err := schemas.ValidateDocument(data); err != nil {
			return err
		}
	}
	if err := st.ImportSnapshot(bytes.NewReader(data)); err != nil {
		return err
	}
	return st.Flush(ctx)
}

func runDataReset(cmd *cobra.Command, _ []string) error {
	if !dataResetYes {
		return fmt.Errorf("reset discards the stored portfolio; pass --yes to confirm")
	}
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		if err := st.ResetToDefault(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Portfolio reset to defaults")
		return nil
	})
}

func runDataShow(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(_ context.Context, st *store.Store) error {
		section := ""
		if len(args) == 1 {
			section = args[0]
		}
		return showSection(st, section, cmd.OutOrStdout())
	})
}

// showSection prints the document, or one section read through the same
// accessors the editor uses.
func showSection(st *store.Store, section string, w io.Writer) error {
	var v any
	switch {
	case section == "":
		v = st.Document()
	case portfolio.IsCollection(section):
		v = st.Collection(section)
	case section == portfolio.SectionProfilePicture:
		v = st.ProfilePicture()
	default:
		value, ok := st.Section(section)
		if !ok {
			return fmt.Errorf("section not found: %s", section)
		}
		v = value
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDataValidate(cmd *cobra.Command, args []string) error {
	if err := schemas.ValidateDocumentFile(args[0]); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is a valid portfolio\n", args[0])
	return nil
}
