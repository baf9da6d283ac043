package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staff-portal/internal/identity"
	"staff-portal/internal/repository"
	"staff-portal/internal/stream"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ReconcilerConfig 对账配置
type ReconcilerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Batch    int64
}

// Reconciler 消费 orphan stream，清理补偿失败留下的残留记录
// 清理成功 ACK；失败保持 pending，下一轮重试
type Reconciler struct {
	client   *redis.Client
	cfg      ReconcilerConfig
	identity identity.Provider
	accounts repository.AccountsRepository
	logger   *zap.Logger

	// pendingCursor 上一轮 pending 读取到的最后一个 ID；每轮从其后继续，读完一遍后回到 "0"
	mu            sync.Mutex
	pendingCursor string
}

// SweepStats 一轮对账结果
type SweepStats struct {
	Cleaned int
	Failed  int
	Skipped int
}

// NewReconciler 创建对账器
func NewReconciler(client *redis.Client, cfg ReconcilerConfig, provider identity.Provider, accounts repository.AccountsRepository, logger *zap.Logger) *Reconciler {
	if cfg.Batch <= 0 {
		cfg.Batch = 20
	}
	return &Reconciler{
		client:        client,
		cfg:           cfg,
		identity:      provider,
		accounts:      accounts,
		logger:        logger,
		pendingCursor: "0",
	}
}

// Run 按 interval 周期对账，直到 ctx 取消
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Reconciler started",
		zap.String("stream", r.cfg.Stream),
		zap.String("group", r.cfg.Group),
		zap.Duration("interval", interval),
	)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			stats, err := r.SweepOnce(ctx)
			if err != nil {
				r.logger.Error("Reconcile sweep failed", zap.Error(err))
				continue
			}
			if stats.Cleaned+stats.Failed+stats.Skipped > 0 {
				r.logger.Info("Reconcile sweep finished",
					zap.Int("cleaned", stats.Cleaned),
					zap.Int("failed", stats.Failed),
					zap.Int("skipped", stats.Skipped),
				)
			}
		}
	}
}

// SweepOnce 先重试本消费者的 pending 消息，再处理新消息
// pending 按游标分批读取，持续失败的消息不会挡住其后的消息
func (r *Reconciler) SweepOnce(ctx context.Context) (SweepStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats SweepStats
	if err := stream.EnsureGroup(ctx, r.client, r.cfg.Stream, r.cfg.Group); err != nil {
		return stats, err
	}

	// 1. pending
	msgs, err := stream.ReadGroup(ctx, r.client, r.cfg.Stream, r.cfg.Group, r.cfg.Consumer, r.pendingCursor, r.cfg.Batch)
	if err != nil {
		return stats, fmt.Errorf("failed to read pending orphans: %w", err)
	}
	for _, msg := range msgs {
		r.handle(ctx, msg, &stats)
	}
	if int64(len(msgs)) < r.cfg.Batch {
		r.pendingCursor = "0"
	} else {
		r.pendingCursor = msgs[len(msgs)-1].ID
	}

	// 2. 新消息
	msgs, err = stream.ReadGroup(ctx, r.client, r.cfg.Stream, r.cfg.Group, r.cfg.Consumer, ">", r.cfg.Batch)
	if err != nil {
		return stats, fmt.Errorf("failed to read orphan stream: %w", err)
	}
	for _, msg := range msgs {
		r.handle(ctx, msg, &stats)
	}
	return stats, nil
}

func (r *Reconciler) handle(ctx context.Context, msg stream.Message, stats *SweepStats) {
	var orphan Orphan
	if err := msg.DecodeJSON(&orphan); err != nil {
		// 无法解析的消息重试也不会成功
		r.logger.Warn("Dropping malformed orphan message", zap.String("id", msg.ID), zap.Error(err))
		r.ack(ctx, msg.ID)
		stats.Skipped++
		return
	}

	if err := r.cleanup(ctx, orphan); err != nil {
		r.logger.Warn("Orphan cleanup failed, will retry",
			zap.String("id", msg.ID),
			zap.String("orphan_kind", string(orphan.Kind)),
			zap.Error(err),
		)
		stats.Failed++
		return
	}

	r.ack(ctx, msg.ID)
	stats.Cleaned++
}

func (r *Reconciler) cleanup(ctx context.Context, orphan Orphan) error {
	switch orphan.Kind {
	case OrphanIdentity:
		if orphan.IdentityID == "" {
			return nil
		}
		err := r.identity.DeleteIdentity(ctx, orphan.IdentityID)
		if errors.Is(err, identity.ErrNotFound) {
			return nil
		}
		return err
	case OrphanProfile:
		if orphan.AccountID == 0 {
			return nil
		}
		err := r.accounts.DeleteAccount(ctx, orphan.AccountID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	r.logger.Warn("Unknown orphan kind", zap.String("orphan_kind", string(orphan.Kind)))
	return nil
}

func (r *Reconciler) ack(ctx context.Context, id string) {
	if err := stream.Ack(ctx, r.client, r.cfg.Stream, r.cfg.Group, id); err != nil {
		r.logger.Warn("Failed to ack orphan message", zap.String("id", id), zap.Error(err))
	}
}
