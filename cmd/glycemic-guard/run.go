package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the periodic escalation sweep until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			svc, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Stop()

			// 在 goroutine 中启动服务
			serviceErrChan := make(chan error, 1)
			go func() {
				if err := svc.Start(ctx); err != nil {
					serviceErrChan <- err
				}
			}()

			// 等待信号（优雅关闭）
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigChan:
				log.Info("Received signal, shutting down",
					zap.String("signal", sig.String()),
				)
				cancel()
			case err := <-serviceErrChan:
				log.Error("Service error", zap.Error(err))
				return err
			}

			log.Info("Glycemic guard service stopped")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a single escalation sweep and exit",
		Long:  "Run a single escalation sweep across all users with pending alerts, or only for --user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer svc.Stop()

			out := cmd.OutOrStdout()
			if userID != "" {
				n, err := svc.SweepUser(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "user:        %s\n", userID)
				fmt.Fprintf(out, "escalations: %s\n", color.New(color.FgGreen).Sprint(n))
				return nil
			}

			stats, err := svc.RunOnce(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "users:       %d\n", stats.Users)
			fmt.Fprintf(out, "escalations: %s\n", color.New(color.FgGreen).Sprint(stats.Escalations))
			if stats.Panics > 0 {
				fmt.Fprintf(out, "panics:      %s\n", color.New(color.FgRed).Sprint(stats.Panics))
			}
			fmt.Fprintf(out, "duration:    %dms\n", stats.DurationMS)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "only sweep this user's pending alerts")
	return cmd
}
