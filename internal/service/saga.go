package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// sagaStep saga 中的一步：正向操作 + 补偿操作
type sagaStep struct {
	name string
	// kind 正向操作失败时的错误类型
	kind error
	run  func(ctx context.Context) error
	// compensate 为空表示无需补偿
	compensate func(ctx context.Context) error
	// orphan 补偿失败时上报的残留记录
	orphan func() Orphan
}

// saga 顺序执行步骤；某步失败时按相反顺序补偿已完成的步骤
// 补偿失败只记录日志并上报 orphan，不覆盖原始错误
type saga struct {
	name    string
	timeout time.Duration
	orphans OrphanReporter
	logger  *zap.Logger
}

func newSaga(name string, timeout time.Duration, orphans OrphanReporter, logger *zap.Logger) *saga {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &saga{name: name, timeout: timeout, orphans: orphans, logger: logger}
}

// execute 返回失败步骤的类型化错误；成功返回 nil
func (s *saga) execute(ctx context.Context, steps ...sagaStep) error {
	done := make([]sagaStep, 0, len(steps))
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			s.logger.Warn("Saga step failed, compensating",
				zap.String("saga", s.name),
				zap.String("step", step.name),
				zap.Int("completed_steps", len(done)),
				zap.Error(err),
			)
			s.compensate(ctx, done)
			// 步骤已返回类型化错误时保留原类型
			if ErrorKind(err) != nil {
				return err
			}
			return wrapError(step.kind, err)
		}
		done = append(done, step)
	}
	return nil
}

// compensate 在脱离请求取消的上下文中执行，避免客户端断开导致补偿中断
func (s *saga) compensate(ctx context.Context, done []sagaStep) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.compensate == nil {
			continue
		}
		err := step.compensate(cctx)
		if err == nil {
			s.logger.Info("Saga step compensated", zap.String("saga", s.name), zap.String("step", step.name))
			continue
		}

		s.logger.Error("Saga compensation failed, record orphaned",
			zap.String("saga", s.name),
			zap.String("step", step.name),
			zap.Error(err),
		)
		if step.orphan != nil {
			orphan := step.orphan()
			orphan.Reason = s.name + ": " + step.name + " compensation failed: " + err.Error()
			reportOrphan(cctx, s.orphans, orphan, s.logger)
		}
	}
}

// reportOrphan 上报失败时只记录日志
func reportOrphan(ctx context.Context, reporter OrphanReporter, orphan Orphan, logger *zap.Logger) {
	if orphan.ReportedAt.IsZero() {
		orphan.ReportedAt = time.Now().UTC()
	}
	fields := []zap.Field{
		zap.String("orphan_kind", string(orphan.Kind)),
		zap.String("identity_id", orphan.IdentityID),
		zap.Int64("account_id", orphan.AccountID),
		zap.String("reason", orphan.Reason),
	}
	if reporter == nil {
		logger.Error("Orphan record requires manual cleanup", fields...)
		return
	}
	if err := reporter.ReportOrphan(ctx, orphan); err != nil {
		logger.Error("Failed to report orphan record", append(fields, zap.Error(err))...)
	}
}
