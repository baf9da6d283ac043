package service

import (
	"context"
	"time"

	"staff-portal/internal/stream"

	"github.com/go-redis/redis/v8"
)

// OrphanKind 残留记录类型
type OrphanKind string

const (
	// OrphanIdentity 身份服务中残留的身份（补偿删除失败）
	OrphanIdentity OrphanKind = "IDENTITY"
	// OrphanProfile Profile Store 中残留的账户行（身份已删除，账户行删除失败）
	OrphanProfile OrphanKind = "PROFILE"
)

// Orphan 需要对账清理的残留记录
type Orphan struct {
	Kind       OrphanKind `json:"kind"`
	IdentityID string     `json:"identity_id,omitempty"`
	AccountID  int64      `json:"account_id,omitempty"`
	Reason     string     `json:"reason"`
	ReportedAt time.Time  `json:"reported_at"`
}

// OrphanReporter 上报残留记录
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, orphan Orphan) error
}

// StreamOrphanReporter 将残留记录写入 Redis Stream，由 Reconciler 消费
type StreamOrphanReporter struct {
	client *redis.Client
	stream string
}

// NewStreamOrphanReporter 创建 Redis Stream 上报器
func NewStreamOrphanReporter(client *redis.Client, streamName string) *StreamOrphanReporter {
	return &StreamOrphanReporter{client: client, stream: streamName}
}

func (r *StreamOrphanReporter) ReportOrphan(ctx context.Context, orphan Orphan) error {
	if orphan.ReportedAt.IsZero() {
		orphan.ReportedAt = time.Now().UTC()
	}
	_, err := stream.PublishJSON(ctx, r.client, r.stream, orphan)
	return err
}
