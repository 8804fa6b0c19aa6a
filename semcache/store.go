package semcache

import (
	"context"
	"errors"
)

// ErrClusterNotFound 目标簇不存在（可能已被并发删除或过期清理）。
var ErrClusterNotFound = errors.New("cluster not found")

// Store 簇的持久化接口。实现必须保证两层键空间互相隔离。
//
// AppendVariation 采用 append-and-cap 语义：写入是追加式的，永远不
// 会改写或删除其他写入者已有的条目；容量已满时静默丢弃。并发的
// 追加在最终容量上允许短暂的轻微超额（以实际后端的一致性模型为
// 准），但不会破坏已有 variation。
type Store interface {
	// ListClusters 返回某层的全部未删除簇。
	ListClusters(ctx context.Context, tier Tier) ([]*Cluster, error)

	// PutCluster 写入新簇。
	PutCluster(ctx context.Context, c *Cluster) error

	// AppendVariation 向已有簇追加 variation 并收紧安全要求。
	AppendVariation(ctx context.Context, tier Tier, clusterID string, v Variation, req SecurityRequirement) error

	// DeleteCluster 删除单个簇。
	DeleteCluster(ctx context.Context, tier Tier, clusterID string) error

	// Clear 清空某层的全部簇。
	Clear(ctx context.Context, tier Tier) error
}
