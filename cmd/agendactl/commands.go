package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/internal/agenda"
	"github.com/aldoetobex/legal-desk-backend/internal/notifications"
	"github.com/aldoetobex/legal-desk-backend/pkg/database"
)

type env struct {
	db  *gorm.DB
	svc *notifications.Service
}

type loader func() (*env, error)

func newRootCmd(load loader) *cobra.Command {
	root := &cobra.Command{
		Use:          "agendactl",
		Short:        "Deadline checks and reports for the legal desk",
		SilenceUsage: true,
	}
	root.AddCommand(
		newCheckCmd(load),
		newPendingCmd(load),
		newDebtsCmd(load),
		newMigrateCmd(load),
	)
	return root
}

func newCheckCmd(load loader) *cobra.Command {
	var (
		dryRun bool
		topic  string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Publish deadlines and events due within two days",
		Long: `Loads every case and event, selects the deadlines and events due today,
tomorrow or the day after, and publishes one notification per entry.
Publishing is best effort: only a failed load makes the command fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				list, err := e.svc.Urgent(cmd.Context())
				if err != nil {
					return fmt.Errorf("could not load notifications: %w", err)
				}
				printEntries(out, list)
				fmt.Fprintf(out, "%d due (dry run, nothing published)\n", len(list))
				return nil
			}

			res, err := e.svc.Dispatch(cmd.Context(), topic)
			if err != nil {
				return fmt.Errorf("could not load notifications: %w", err)
			}
			printEntries(out, res.Entries)
			fmt.Fprintf(out, "%d published, %d failed\n", res.Published, res.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the urgent list without publishing")
	cmd.Flags().StringVar(&topic, "topic", "", "Publish to this topic instead of NOTIFY_TOPIC")
	return cmd
}

func newPendingCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List unfulfilled filings and tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			list, err := e.svc.Pending(cmd.Context())
			if err != nil {
				return fmt.Errorf("could not load pending work: %w", err)
			}
			printEntries(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newDebtsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "debts",
		Short: "List clients that still owe money",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			debts, err := e.svc.Debts(cmd.Context())
			if err != nil {
				return fmt.Errorf("could not load debts: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, d := range debts {
				fmt.Fprintf(out, "%s\t%d owing cases\t%s unpaid\n", d.Client.Name, len(d.OwingCases), cents(d.UnpaidDebtCents))
			}
			fmt.Fprintf(out, "%d clients owe\n", len(debts))
			return nil
		},
	}
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			if err := database.Migrate(e.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func printEntries(out io.Writer, list []agenda.Notification) {
	for _, n := range list {
		fmt.Fprintf(out, "[%s] %s: %s\n", n.Priority, n.Title, n.Message)
	}
}

func cents(v int64) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}
