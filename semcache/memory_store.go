package semcache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore 进程内簇存储（用于测试和单实例部署）。
type MemoryStore struct {
	mu       sync.RWMutex
	clusters map[Tier]map[string]*Cluster
	logger   *zap.Logger
}

// NewMemoryStore 创建内存簇存储。
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		clusters: map[Tier]map[string]*Cluster{
			TierResponse: {},
			TierContext:  {},
		},
		logger: logger.With(zap.String("component", "memory_cache_store")),
	}
}

// ListClusters 返回某层的全部簇。
func (s *MemoryStore) ListClusters(ctx context.Context, tier Tier) ([]*Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tierClusters := s.clusters[tier]
	out := make([]*Cluster, 0, len(tierClusters))
	for _, c := range tierClusters {
		out = append(out, cloneCluster(c))
	}
	return out, nil
}

// PutCluster 写入新簇。
func (s *MemoryStore) PutCluster(ctx context.Context, c *Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clusters[c.Tier] == nil {
		s.clusters[c.Tier] = map[string]*Cluster{}
	}
	s.clusters[c.Tier][c.ID] = cloneCluster(c)
	return nil
}

// AppendVariation 追加 variation；容量已满时静默丢弃。
func (s *MemoryStore) AppendVariation(ctx context.Context, tier Tier, clusterID string, v Variation, req SecurityRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[tier][clusterID]
	if !ok {
		return ErrClusterNotFound
	}
	if c.AppendVariation(v, req) {
		s.logger.Debug("variation appended",
			zap.String("tier", string(tier)),
			zap.String("cluster_id", clusterID),
			zap.Int("variations", len(c.Variations)))
	}
	return nil
}

// DeleteCluster 删除单个簇。
func (s *MemoryStore) DeleteCluster(ctx context.Context, tier Tier, clusterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clusters[tier], clusterID)
	return nil
}

// Clear 清空某层的全部簇。
func (s *MemoryStore) Clear(ctx context.Context, tier Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters[tier] = map[string]*Cluster{}
	s.logger.Info("cache tier cleared", zap.String("tier", string(tier)))
	return nil
}

// cloneCluster 深拷贝簇，避免调用方与存储共享可变切片。
func cloneCluster(c *Cluster) *Cluster {
	cp := *c
	cp.Centroid = append([]float64(nil), c.Centroid...)
	cp.Variations = append([]Variation(nil), c.Variations...)
	cp.Requirement.DepartmentIDs = append([]string(nil), c.Requirement.DepartmentIDs...)
	return &cp
}
