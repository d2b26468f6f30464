// efilectl submits filings, checks envelopes and manages drafts from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"eviction-tracker/efiling/internal/app"
	"eviction-tracker/efiling/internal/config"
	draftdomain "eviction-tracker/efiling/internal/draft/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "efilectl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "efilectl",
		Short:         "Eviction e-filing command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSubmitCmd(), newStatusCmd(), newEventsCmd(), newDraftsCmd())
	return root
}

// withApp loads config, builds the engine and runs fn against it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a, err := app.Build(cmd.Context(), cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func newSubmitCmd() *cobra.Command {
	var (
		file      string
		saveDraft bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Build, validate and submit a filing from a YAML form",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := loadForm(file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Filings.BuildAndSubmit(ctx, form)
				if err != nil {
					if saveDraft {
						d, derr := a.Drafts.Save(ctx, draftdomain.Draft{ID: form.ReferenceID, Input: form})
						if derr == nil {
							fmt.Fprintf(cmd.ErrOrStderr(), "saved draft %s\n", d.ID)
						}
					}
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML form file (required)")
	cmd.Flags().BoolVar(&saveDraft, "save-draft", false, "Save the form as a draft when submission fails")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <envelope-id>",
		Short: "Check the status of a submitted envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Filings.CheckStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newEventsCmd() *cobra.Command {
	var limit int32
	cmd := &cobra.Command{
		Use:   "events <envelope-id>",
		Short: "List recorded events for an envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				events, err := a.Filings.Events(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), events)
			})
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", 100, "Maximum number of events")
	return cmd
}

func newDraftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Manage saved drafts",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List drafts that have not expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				drafts, err := a.Drafts.Load(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), drafts)
			})
		},
	}
	del := &cobra.Command{
		Use:   "delete <draft-id>",
		Short: "Delete one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Drafts.Delete(ctx, args[0])
			})
		},
	}
	var maxAge time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete drafts older than --max-age (defaults to DRAFT_MAX_AGE)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				age := maxAge
				if age <= 0 {
					age = a.Config.DraftMaxAge
				}
				n, err := a.Drafts.PurgeExpired(ctx, age)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d drafts\n", n)
				return nil
			})
		},
	}
	purge.Flags().DurationVar(&maxAge, "max-age", 0, "Age after which a draft is purged")
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Drafts.Clear(ctx)
			})
		},
	}
	cmd.AddCommand(list, del, purge, clearCmd)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
