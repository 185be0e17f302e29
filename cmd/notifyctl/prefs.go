package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"learnhub.io/notifier/internal/domain"
)

func newPrefsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show channel preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := opts.api()
			if err != nil {
				return err
			}
			p, err := api.Preferences(cmd.Context())
			if err != nil {
				return err
			}
			return printPrefs(cmd, p)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "set key=bool...",
		Short:   "Change channel preferences, e.g. email_grades=false",
		Args:    cobra.MinimumNArgs(1),
		Example: "  notifyctl prefs set email_grades=false push_live_classes=true",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.api()
			if err != nil {
				return err
			}
			current, err := api.Preferences(cmd.Context())
			if err != nil {
				return err
			}
			next, err := applyPrefs(current, args)
			if err != nil {
				return err
			}
			saved, err := api.UpdatePreferences(cmd.Context(), next)
			if err != nil {
				return err
			}
			return printPrefs(cmd, saved)
		},
	})
	return cmd
}

// prefsFlags returns the boolean toggles of p keyed by their JSON names.
func prefsFlags(p domain.Preferences) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if _, ok := v.(bool); !ok {
			delete(fields, k)
		}
	}
	return fields, nil
}

// applyPrefs sets each key=bool assignment on p. Unknown keys are rejected.
func applyPrefs(p domain.Preferences, assignments []string) (domain.Preferences, error) {
	fields, err := prefsFlags(p)
	if err != nil {
		return p, err
	}
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return p, fmt.Errorf("expected key=bool, got %q", a)
		}
		if _, known := fields[key]; !known {
			return p, fmt.Errorf("unknown preference %q", key)
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return p, fmt.Errorf("preference %s: %w", key, err)
		}
		fields[key] = b
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return p, err
	}
	next := p
	if err := json.Unmarshal(raw, &next); err != nil {
		return p, err
	}
	return next, nil
}

func printPrefs(cmd *cobra.Command, p domain.Preferences) error {
	fields, err := prefsFlags(p)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%t\n", k, fields[k])
	}
	return w.Flush()
}
