package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/metasearch/internal/config"
)

type rootOptions struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "metasearch",
		Short:         "Aggregate web search results from several engines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.v, opts.configFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = config.NewLogger(os.Stderr, cfg.Log)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./metasearch.yaml or $HOME/.config/metasearch/metasearch.yaml)")
	flags.StringSlice("providers", nil, "search providers in merge order (google, yandex, duckduckgo, searxng)")
	flags.Int("per-provider", 0, "results requested from each provider")
	flags.Duration("timeout", 0, "timeout of every outbound request")
	flags.String("user-agent", "", "client identification header; empty rotates browser strings")
	flags.String("fingerprint", "", "TLS fingerprint: go, chrome, firefox, safari, random")
	flags.StringSlice("proxy", nil, "proxy URLs to rotate through")
	flags.String("journal", "", "journal backend: none, sqlite, postgres, json, csv")
	flags.String("journal-dsn", "", "journal file path or database DSN")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")

	bind := map[string]string{
		"providers":                 "providers",
		"per_provider_result_count": "per-provider",
		"request_timeout":           "timeout",
		"client_identification":     "user-agent",
		"fingerprint":               "fingerprint",
		"proxies":                   "proxy",
		"journal.backend":           "journal",
		"journal.dsn":               "journal-dsn",
		"log.level":                 "log-level",
		"log.format":                "log-format",
	}
	for key, flag := range bind {
		_ = opts.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newSearchCmd(opts), newServeCmd(opts), newReportCmd(opts))
	return cmd
}
