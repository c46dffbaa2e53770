package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"glycemic-guard/internal/models"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func iobCmd() *cobra.Command {
	var at string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "iob <user-id>",
		Short: "Print the current insulin-on-board projection for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value: %w", err)
				}
				asOf = t
			}

			ctx := context.Background()
			svc, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Stop()

			proj, err := svc.Project(ctx, args[0], asOf)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(proj)
			}
			printProjection(cmd.OutOrStdout(), args[0], proj)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "project as of this RFC3339 time (default now)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the projection as JSON")
	return cmd
}

// printProjection 输出投影；nil 表示没有可用数据
func printProjection(w io.Writer, userID string, p *models.IoBProjection) {
	if p == nil {
		fmt.Fprintf(w, "%s: no pump data in the DIA window\n", userID)
		return
	}

	anchor := string(p.Anchor.Kind)
	if p.IsEstimated {
		anchor = color.New(color.FgYellow).Sprint(anchor)
	}

	fmt.Fprintf(w, "User:         %s\n", userID)
	fmt.Fprintf(w, "Anchor:       %s %.2f U at %s\n", anchor, p.ConfirmedIoB, p.ConfirmedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "IoB now:      %.2f U\n", p.ProjectedIoB)
	fmt.Fprintf(w, "IoB +30 min:  %.2f U\n", p.Projected30Min)
	fmt.Fprintf(w, "IoB +60 min:  %.2f U\n", p.Projected60Min)
	fmt.Fprintf(w, "Age:          %d min\n", p.MinutesSinceConfirmed)
	if p.StaleWarning != "" {
		c := color.New(color.FgYellow)
		if p.IsStale {
			c = color.New(color.FgRed)
		}
		fmt.Fprintf(w, "Warning:      %s\n", c.Sprint(p.StaleWarning))
	}
}
