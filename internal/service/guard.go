package service

import (
	"context"
	"fmt"
	"time"

	"glycemic-guard/common/database"
	commonmqtt "glycemic-guard/common/mqtt"
	commonredis "glycemic-guard/common/redis"
	"glycemic-guard/internal/config"
	"glycemic-guard/internal/decay"
	"glycemic-guard/internal/escalation"
	"glycemic-guard/internal/models"
	"glycemic-guard/internal/notifier"
	"glycemic-guard/internal/projection"
	"glycemic-guard/internal/repository"
	"glycemic-guard/internal/sweep"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// GuardService 升级服务（整合各层）
type GuardService struct {
	config      *config.Config
	store       *repository.Store
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	logger      *zap.Logger

	// 各层组件
	projector    *projection.Projector
	orchestrator *escalation.Orchestrator
	configs      *escalation.ConfigService
	sweep        *sweep.Sweep
	runner       *sweep.Runner
}

// NewGuardService 创建服务：连接数据库并建表，按通知渠道连接 Redis / MQTT
func NewGuardService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*GuardService, error) {
	s := &GuardService{config: cfg, logger: logger}

	// 1. 连接数据库
	db, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	dialect := repository.ParseDialect(cfg.Database.Driver)
	if err := repository.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.store = repository.NewStore(db, dialect, cfg.Projection.DefaultDIAHours, logger)

	// 2. 按需连接 Redis / MQTT
	if cfg.Notify.Channel == notifier.ChannelRedis || cfg.Sweep.PublishStats {
		s.redisClient, err = commonredis.Connect(ctx, &cfg.Redis, 0)
		if err != nil {
			s.Stop()
			return nil, err
		}
	}
	if cfg.Notify.Channel == notifier.ChannelMQTT {
		s.mqttClient, err = commonmqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.Stop()
			return nil, err
		}
	}

	// 3. 通知发送器
	opts := notifier.Options{
		Redis:        s.redisClient,
		StreamName:   cfg.Notify.Stream,
		StreamMaxLen: cfg.Notify.StreamMaxLen,
		TopicPrefix:  cfg.Notify.TopicPrefix,
		Telegram: notifier.TelegramConfig{
			APIURL:     cfg.Telegram.APIURL,
			BotToken:   cfg.Telegram.BotToken,
			Timeout:    cfg.Escalation.DispatchTimeout,
			RetryCount: cfg.Telegram.RetryCount,
		},
		PatientChats: s.store.PatientChats,
	}
	if s.mqttClient != nil {
		opts.MQTT = s.mqttClient
	}
	dispatcher, err := notifier.New(cfg.Notify.Channel, opts, logger)
	if err != nil {
		s.Stop()
		return nil, err
	}

	// 4. 投影
	model, err := decay.NewModel(cfg.Projection.DecayModel, cfg.Projection.PeakMinutes)
	if err != nil {
		s.Stop()
		return nil, err
	}
	s.projector = projection.NewProjector(s.store.PumpEvents, s.store.InsulinConfigs, model, logger)

	// 5. 升级
	s.orchestrator = escalation.NewOrchestrator(
		s.store.EscalationConfigs,
		s.store.EscalationEvents,
		escalation.NewContactResolver(s.store.Contacts),
		dispatcher,
		logger,
		escalation.WithDispatchTimeout(cfg.Escalation.DispatchTimeout),
	)
	s.configs = escalation.NewConfigService(s.store.EscalationConfigs, logger)

	// 6. 周期扫描
	runnerOpts := []sweep.RunnerOption{
		sweep.WithInterval(cfg.Sweep.Interval),
		sweep.WithWorkers(cfg.Sweep.Workers),
	}
	if cfg.Sweep.PublishStats && s.redisClient != nil {
		runnerOpts = append(runnerOpts, sweep.WithStatsPublisher(
			sweep.NewRedisStatsPublisher(s.redisClient, cfg.Sweep.StatsStream, 1000),
		))
	}
	s.sweep = sweep.NewSweep(s.store.Alerts, s.orchestrator, logger)
	s.runner = sweep.NewRunner(
		s.store.Alerts,
		s.sweep,
		logger,
		runnerOpts...,
	)

	return s, nil
}

// Start 启动周期扫描（阻塞直到 ctx 取消）
func (s *GuardService) Start(ctx context.Context) error {
	s.logger.Info("Starting glycemic guard service",
		zap.String("db_driver", s.config.Database.Driver),
		zap.String("notify_channel", s.config.Notify.Channel),
		zap.String("decay_model", s.config.Projection.DecayModel),
	)

	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start escalation sweep: %w", err)
	}
	return nil
}

// RunOnce 执行一次扫描
func (s *GuardService) RunOnce(ctx context.Context) (sweep.Stats, error) {
	return s.runner.RunOnce(ctx)
}

// SweepUser 只扫描单个用户，返回触发的升级数
func (s *GuardService) SweepUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user_id is required")
	}
	email, err := s.store.Alerts.UserEmail(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.sweep.RunForUser(ctx, userID, email), nil
}

// SetPatientChat 登记患者本人的 Telegram chat（reminder 层级使用），空值表示删除
func (s *GuardService) SetPatientChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.store.Alerts.UserEmail(ctx, userID); err != nil {
		return err
	}
	return s.store.PatientChats.SetChatID(ctx, userID, chatID)
}

// Project 计算用户在 asOf 时刻的 IoB 投影
func (s *GuardService) Project(ctx context.Context, userID string, asOf time.Time) (*models.IoBProjection, error) {
	return s.projector.Project(ctx, userID, asOf)
}

// Configs 升级配置读写
func (s *GuardService) Configs() *escalation.ConfigService {
	return s.configs
}

// Store 数据访问层
func (s *GuardService) Store() *repository.Store {
	return s.store
}

// Stop 停止服务，关闭外部连接
func (s *GuardService) Stop() error {
	s.logger.Info("Stopping glycemic guard service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redisClient != nil {
		if err := commonredis.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	if s.store != nil {
		if err := database.Close(s.store.DB); err != nil {
			s.logger.Error("Failed to close database",
				zap.Error(err),
			)
		}
	}

	return nil
}
