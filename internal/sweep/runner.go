package sweep

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"glycemic-guard/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 默认调度参数
const (
	DefaultInterval = time.Minute
	DefaultWorkers  = 4
)

// UserDirectory 有待升级报警的用户
type UserDirectory interface {
	UsersWithPendingAlerts(ctx context.Context, now time.Time) ([]repository.UserRef, error)
}

// Stats 单次扫描汇总
type Stats struct {
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	Users       int       `json:"users"`
	Escalations int       `json:"escalations"`
	Panics      int       `json:"panics"`
}

// StatsPublisher 扫描汇总发布（供调度方/监控读取）
type StatsPublisher interface {
	PublishStats(ctx context.Context, stats Stats) error
}

// Runner 周期性扫描所有用户。
// 同一次扫描内不同用户并发处理（最多 workers 个），同一用户的报警顺序处理。
type Runner struct {
	users    UserDirectory
	sweep    *Sweep
	stats    StatsPublisher
	interval time.Duration
	workers  int
	logger   *zap.Logger
	now      func() time.Time
}

// RunnerOption Runner 选项
type RunnerOption func(*Runner)

// WithStatsPublisher 每次扫描后发布汇总
func WithStatsPublisher(p StatsPublisher) RunnerOption {
	return func(r *Runner) { r.stats = p }
}

// WithInterval 扫描间隔
func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithWorkers 并发用户数
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRunner 创建周期扫描器
func NewRunner(users UserDirectory, sweep *Sweep, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		users:    users,
		sweep:    sweep,
		interval: DefaultInterval,
		workers:  DefaultWorkers,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 启动周期扫描（阻塞直到 ctx 取消），启动时立即执行一次
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("Escalation sweep started",
		zap.Duration("interval", r.interval),
		zap.Int("workers", r.workers),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("Failed to run escalation sweep on startup", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Escalation sweep stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Failed to run escalation sweep", zap.Error(err))
				// 继续执行，不中断
			}
		}
	}
}

// RunOnce 扫描一次所有有待升级报警的用户
func (r *Runner) RunOnce(ctx context.Context) (Stats, error) {
	started := r.now()
	stats := Stats{StartedAt: started.UTC()}

	users, err := r.users.UsersWithPendingAlerts(ctx, started)
	if err != nil {
		return stats, fmt.Errorf("failed to list users with pending alerts: %w", err)
	}
	stats.Users = len(users)

	var escalations, panics int64
	var g errgroup.Group
	g.SetLimit(r.workers)

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		u := u
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					atomic.AddInt64(&panics, 1)
					r.logger.Error("Panic during user sweep",
						zap.String("user_id", u.UserID),
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
				}
			}()
			res := r.sweep.runForUser(ctx, u.UserID, u.Email)
			atomic.AddInt64(&escalations, int64(res.escalations))
			atomic.AddInt64(&panics, int64(res.panics))
			return nil
		})
	}
	_ = g.Wait()

	stats.Escalations = int(atomic.LoadInt64(&escalations))
	stats.Panics = int(atomic.LoadInt64(&panics))
	stats.DurationMS = r.now().Sub(started).Milliseconds()

	r.logger.Debug("Escalation sweep tick",
		zap.Int("users", stats.Users),
		zap.Int("escalations", stats.Escalations),
		zap.Int("panics", stats.Panics),
		zap.Int64("duration_ms", stats.DurationMS),
	)

	if r.stats != nil {
		if err := r.stats.PublishStats(ctx, stats); err != nil {
			r.logger.Warn("Failed to publish sweep stats", zap.Error(err))
		}
	}

	return stats, nil
}
