package main

import (
	"context"
	"fmt"
	"io"

	"glycemic-guard/internal/escalation"
	"glycemic-guard/internal/models"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or update a user's escalation settings",
	}
	cmd.AddCommand(configGetCmd())
	cmd.AddCommand(configSetCmd())
	cmd.AddCommand(configChatCmd())
	return cmd
}

func configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show escalation delays (creates defaults on first access)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Stop()

			cfg, err := svc.Configs().Get(ctx, args[0])
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	var reminder, primary, all int

	cmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Update escalation delays in minutes",
		Long: `Update one or more escalation delays. Delays must stay strictly increasing:
reminder < primary-contact < all-contacts. Invalid combinations are rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update := buildConfigUpdate(cmd, reminder, primary, all)
			if update.ReminderDelayMinutes == nil && update.PrimaryContactDelayMinutes == nil && update.AllContactsDelayMinutes == nil {
				return fmt.Errorf("at least one of --reminder, --primary, --all is required")
			}

			ctx := context.Background()
			svc, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Stop()

			cfg, err := svc.Configs().Update(ctx, args[0], update)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	cmd.Flags().IntVar(&reminder, "reminder", 0, "minutes before reminding the patient")
	cmd.Flags().IntVar(&primary, "primary", 0, "minutes before notifying primary contacts")
	cmd.Flags().IntVar(&all, "all", 0, "minutes before notifying all contacts")
	return cmd
}

func configChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <user-id> <chat-id>",
		Short: "Register the patient's own Telegram chat for reminders",
		Long: `Register the Telegram chat id or @username that receives reminder-tier
notifications on the telegram channel. Pass "" to remove it; reminders are then logged only.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Stop()

			if err := svc.SetPatientChat(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "patient chat updated: user_id=%s\n", args[0])
			return nil
		},
	}
}

// buildConfigUpdate 只包含显式设置的参数
func buildConfigUpdate(cmd *cobra.Command, reminder, primary, all int) escalation.ConfigUpdate {
	var u escalation.ConfigUpdate
	if cmd.Flags().Changed("reminder") {
		u.ReminderDelayMinutes = &reminder
	}
	if cmd.Flags().Changed("primary") {
		u.PrimaryContactDelayMinutes = &primary
	}
	if cmd.Flags().Changed("all") {
		u.AllContactsDelayMinutes = &all
	}
	return u
}

func printConfig(w io.Writer, cfg *models.EscalationConfig) {
	fmt.Fprintf(w, "user_id:                       %s\n", cfg.UserID)
	fmt.Fprintf(w, "reminder_delay_minutes:        %d\n", cfg.ReminderDelayMinutes)
	fmt.Fprintf(w, "primary_contact_delay_minutes: %d\n", cfg.PrimaryContactDelayMinutes)
	fmt.Fprintf(w, "all_contacts_delay_minutes:    %d\n", cfg.AllContactsDelayMinutes)
}
