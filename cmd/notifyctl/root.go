package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"learnhub.io/notifier/internal/client"
	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/pkg/logger"
)

type rootOptions struct {
	baseURL  string
	token    string
	logLevel string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "notifyctl - LearnHub notification client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.Init(opts.logLevel, "console"); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if !cmd.Flags().Changed("api") && cfg.Client.BaseURL != "" {
				opts.baseURL = cfg.Client.BaseURL
			}
			if !cmd.Flags().Changed("token") {
				opts.token = cfg.Client.Token
			}
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "api", "http://localhost:8080", "notification server URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "session token (defaults to CLIENT_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "client log level")

	cmd.AddCommand(
		newWatchCmd(opts),
		newListCmd(opts),
		newReadCmd(opts),
		newReadAllCmd(opts),
		newDispatchCmd(opts),
		newPrefsCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

func (o *rootOptions) api() (*client.APIClient, error) {
	if o.token == "" {
		return nil, fmt.Errorf("a session token is required (--token or CLIENT_TOKEN)")
	}
	return client.NewAPIClient(o.baseURL, o.token, o.cfg.Client.RequestTimeout), nil
}

// socketURL maps the server URL to its websocket endpoint.
func socketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String(), nil
}
