package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"learnhub.io/notifier/internal/client"
	"learnhub.io/notifier/internal/domain"
)

func newDispatchCmd(opts *rootOptions) *cobra.Command {
	var (
		req  client.DispatchRequest
		typ  string
		data string
	)
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Send a platform event (requires the dispatch permission)",
		Example: `  notifyctl dispatch --type SYSTEM_ALERT --to s1,s2 --title "Maintenance" --message "Offline at 22:00"
  notifyctl dispatch --type CLASS_ANNOUNCEMENT --class c-7 --data '{"class_name":"Year 3","headline":"Trip","body":"Bring lunch"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Type = domain.NotificationType(strings.ToUpper(typ))
			if !req.Type.Valid() {
				return fmt.Errorf("unknown notification type %q", typ)
			}
			if data != "" {
				if err := json.Unmarshal([]byte(data), &req.Data); err != nil {
					return fmt.Errorf("parse --data: %w", err)
				}
			}

			api, err := opts.api()
			if err != nil {
				return err
			}
			resp, err := api.Dispatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, failed %d, skipped %d\n",
				resp.Created, len(resp.Failed), len(resp.Skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "notification type, e.g. ASSIGNMENT_GRADED")
	cmd.Flags().StringSliceVar(&req.RecipientIDs, "to", nil, "recipient user ids")
	cmd.Flags().StringVar(&req.ClassID, "class", "", "class whose active students receive the event")
	cmd.Flags().StringVar(&req.Title, "title", "", "title template (defaults to the catalog wording)")
	cmd.Flags().StringVar(&req.Message, "message", "", "message template (defaults to the catalog wording)")
	cmd.Flags().StringVar(&data, "data", "", "template data as a JSON object")
	cmd.Flags().StringVar(&req.IdempotencyKey, "idempotency-key", "", "suppress repeats of the same event")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
