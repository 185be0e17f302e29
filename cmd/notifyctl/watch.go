package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/client"
	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/pkg/logger"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the inbox and ring the terminal on new notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := opts.api()
			if err != nil {
				return err
			}
			wsURL, err := socketURL(opts.baseURL)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ccfg := opts.cfg.Client
			channel := client.NewChannel(client.ChannelConfig{
				URL:            wsURL,
				MaxAttempts:    ccfg.MaxReconnectAttempts,
				ReconnectDelay: ccfg.ReconnectDelay,
			}, func(ctx context.Context) (string, error) {
				ticket, err := api.SocketTicket(ctx)
				return ticket.Token, err
			}, client.WithStateHook(func(s client.State) {
				logger.Info("realtime channel state", zap.Stringer("state", s))
				if s == client.PermanentlyDisconnected {
					fmt.Fprintln(out, "live updates stopped; falling back to polling")
				}
			}))

			session := client.NewSession(api, channel, client.SessionConfig{
				PollInterval: ccfg.PollInterval,
				ListLimit:    ccfg.ListLimit,
			},
				client.WithSurfacer(client.TerminalSurfacer{W: out}),
				client.WithChangeHook(func(_ []domain.Notification, unread int) {
					fmt.Fprintf(out, "unread: %d\n", unread)
				}),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := session.Start(ctx); err != nil {
				return err
			}
			defer session.Close()

			<-ctx.Done()
			return nil
		},
	}
}
