package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/billform/internal/errors"
	"github.com/vango-dev/billform/pkg/export"
	"github.com/vango-dev/billform/pkg/receipt"
)

// parseQuery accepts a bare query string or a full page URL.
func parseQuery(arg string, cat *receipt.Catalog) (receipt.Query, error) {
	raw := strings.TrimSpace(arg)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	v, err := url.ParseQuery(raw)
	if err != nil {
		return receipt.Query{}, errors.New("E160").
			WithDetail("The document must be given as a query string such as 'lang=th&no=7'.").
			Wrap(err)
	}
	return receipt.FromValues(v, cat), nil
}

func renderCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render [query]",
		Short: "Render a printable page",
		Long: `Render the printable page of a document to a file or stdout.
The document is a query string or a URL copied from the browser.

Examples:
  billform render 'lang=th&no=7&desc=Tea&price=40&qty=2' -o bill.html
  billform render 'http://localhost:8080/?doc=receipt&no=12'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			cat, err := catalog(cfg)
			if err != nil {
				return err
			}
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			q, err := parseQuery(arg, cat)
			if err != nil {
				return err
			}

			e := export.NewExporter(nil, cat,
				export.WithStyleSheets(cfg.Server.StyleSheets...),
				export.WithLogger(cfg.Logger(cmd.ErrOrStderr())),
			)
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return e.WritePage(cmd.Context(), w, q)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// writeOutput runs fn against path, or against stdout when path is empty
// or "-".
func writeOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		bw := bufio.NewWriter(stdout)
		if err := fn(bw); err != nil {
			return err
		}
		return bw.Flush()
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.New("E161").WithDetail(path + " could not be created.").Wrap(err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.New("E161").Wrap(err)
	}
	success(stdout, "Wrote %s", path)
	return nil
}

func exportCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [query]",
		Short: "Render a document and store it",
		Long: `Render a document and put it in the configured export store
(export.store in the configuration file: disk or s3).

Examples:
  billform export 'no=A-7&name=Somchai'
  BILLFORM_EXPORT_STORE=disk BILLFORM_EXPORT_DIR=./out billform export 'no=8'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			store, err := cfg.OpenStore()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("E140").
					WithDetail("No export store is configured.").
					WithSuggestion("set export.store to disk or s3")
			}
			cat, err := catalog(cfg)
			if err != nil {
				return err
			}
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			q, err := parseQuery(arg, cat)
			if err != nil {
				return err
			}

			e := export.NewExporter(store, cat,
				export.WithStyleSheets(cfg.Server.StyleSheets...),
				export.WithLogger(cfg.Logger(cmd.ErrOrStderr())),
			)
			loc, err := e.Export(cmd.Context(), q)
			if err != nil {
				return errors.New("E141").Wrap(err)
			}
			out := cmd.OutOrStdout()
			success(out, "Exported %s", loc.Name)
			info(out, "%s (%d bytes)", loc.URL, loc.Size)
			fmt.Fprintln(out)
			return nil
		},
	}
	return cmd
}
