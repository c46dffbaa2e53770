package main

import (
	"context"
	"fmt"
	"os"

	"glycemic-guard/common/logger"
	"glycemic-guard/internal/config"
	"glycemic-guard/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "glycemic-guard",
		Short: "IoB projection and tiered alert escalation",
		Long: `glycemic-guard projects insulin-on-board from pump history and escalates
unacknowledged critical glucose alerts to emergency contacts.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(iobCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap 加载配置、初始化日志并创建服务
func bootstrap(ctx context.Context) (*service.GuardService, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.ServiceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}

	svc, err := service.NewGuardService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create guard service", zap.Error(err))
		_ = log.Sync()
		return nil, nil, err
	}
	return svc, log, nil
}
