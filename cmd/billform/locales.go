package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/billform/internal/errors"
	"github.com/vango-dev/billform/pkg/receipt"
)

func localesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locales",
		Short: "Inspect and check label languages",
	}
	cmd.AddCommand(localesListCmd(g), localesValidateCmd())
	return cmd
}

func localesListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List languages and their document types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			cat, err := catalog(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s %-8s %-10s %s\n", "LANG", "BUTTON", "CURRENCY", "DOCUMENTS")
			for _, lang := range cat.Languages() {
				l := cat.Locale(lang)
				docs := make([]string, 0, len(l.Docs))
				for _, d := range cat.DocTypes(lang) {
					docs = append(docs, fmt.Sprintf("%s (%s)", docName(d), cat.Labels(lang, d).Title))
				}
				code := string(lang)
				if lang == receipt.English {
					code = "en"
				}
				fmt.Fprintf(out, "%-6s %-8s %-10s %s\n", code, l.Button, l.Currency, strings.Join(docs, ", "))
			}
			return nil
		},
	}
}

func docName(d receipt.DocType) string {
	if d == receipt.CashSale {
		return "cash-sale"
	}
	return string(d)
}

func localesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Check locale files",
		Long: `Check that locale files parse and that the base document type
defines every label. Directories are searched for *.yaml and *.yml files.

Examples:
  billform locales validate ./locales
  billform locales validate ./locales/de.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := localeFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("E160").WithDetail("No *.yaml or *.yml files found.")
			}

			out := cmd.OutOrStdout()
			var first *errors.Error
			failed := 0
			for _, f := range files {
				data, err := os.ReadFile(f)
				if err == nil {
					_, err = receipt.ParseLocale(data)
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "\033[31m✗\033[0m %s: %v\n", f, err)
					if first == nil {
						first = errors.New("E121").Wrap(err)
						first.Location = &errors.Location{File: f}
					}
					continue
				}
				success(out, "%s", f)
			}
			if first != nil {
				return first.WithDetail(fmt.Sprintf("%d of %d locale files are invalid.", failed, len(files)))
			}
			return nil
		},
	}
}

func localeFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, errors.New("E120").WithDetail(arg + " could not be read.").Wrap(err)
		}
		if !st.IsDir() {
			files = append(files, arg)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			m, _ := filepath.Glob(filepath.Join(arg, pattern))
			files = append(files, m...)
		}
	}
	return files, nil
}
