// Command billform serves and renders editable bills and receipts.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/billform/internal/config"
	"github.com/vango-dev/billform/internal/errors"
	"github.com/vango-dev/billform/pkg/receipt"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configFile string
	dir        string
	noColor    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "billform",
		Short: "Printable bills and receipts, edited live in the browser",
		Long: `billform serves a cash sale or receipt form that is edited in the
browser and rendered on the server. Every edit is kept in the page URL,
so a finished document can be shared, printed or exported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor || os.Getenv("NO_COLOR") != "" {
				errors.DisableColors()
			}
		},
	}

	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "Configuration file (default: billform.yaml in --dir)")
	root.PersistentFlags().StringVar(&g.dir, "dir", ".", "Directory searched for the configuration file")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored error output")

	root.AddCommand(
		serveCmd(g),
		renderCmd(g),
		exportCmd(g),
		localesCmd(g),
		configCmd(g),
		versionCmd(),
	)
	return root
}

// load discovers the configuration for a command.
func (g *globals) load() (*config.Config, error) {
	return config.Discover(g.dir, g.configFile, config.EnvLookup)
}

// catalog builds the label catalog, layering the configured locale
// directory over the built-in languages.
func catalog(cfg *config.Config) (*receipt.Catalog, error) {
	c, err := receipt.NewCatalog()
	if err != nil {
		return nil, errors.New("E121").Wrap(err)
	}
	if cfg.Locale.Dir == "" {
		return c, nil
	}
	if _, err := os.Stat(cfg.Locale.Dir); err != nil {
		return nil, errors.New("E120").
			WithDetail(cfg.Locale.Dir + " could not be read.").
			Wrap(err)
	}
	if _, err := c.LoadDir(cfg.Locale.Dir); err != nil {
		return nil, errors.New("E121").
			WithSuggestion("run 'billform locales validate " + cfg.Locale.Dir + "'").
			Wrap(err)
	}
	return c, nil
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
