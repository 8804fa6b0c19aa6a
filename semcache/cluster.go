package semcache

import (
	"time"

	"github.com/google/uuid"
)

// ClusterState 簇的生命周期状态。
type ClusterState string

const (
	StateCreated   ClusterState = "created"   // 单 variation
	StateGrowing   ClusterState = "growing"   // 未满，可追加
	StateSaturated ClusterState = "saturated" // 已满，只读
	StateExpired   ClusterState = "expired"   // TTL 过期，终态
)

// Variation 簇内一条可互换的缓存载荷。
type Variation struct {
	ID               string    `json:"id"`
	Payload          []byte    `json:"payload"`
	MaxSecurityLevel int       `json:"max_security_level"`
	CreatedAt        time.Time `json:"created_at"`
}

// Cluster 语义缓存单元，以查询嵌入质心为键。
type Cluster struct {
	ID          string              `json:"id"`
	Tier        Tier                `json:"tier"`
	Centroid    []float64           `json:"centroid"`
	Scope       string              `json:"scope"` // 创建者的精确作用域键
	Requirement SecurityRequirement `json:"requirement"`
	Variations  []Variation         `json:"variations"`
	MaxEntries  int                 `json:"max_entries"`
	TTL         time.Duration       `json:"ttl"`
	CreatedAt   time.Time           `json:"created_at"`
	LastHitAt   time.Time           `json:"last_hit_at,omitempty"`
}

// NewCluster 以单个 variation 创建新簇。
func NewCluster(tier Tier, centroid []float64, scope string, req SecurityRequirement, v Variation, maxEntries int, ttl time.Duration) *Cluster {
	now := time.Now()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	return &Cluster{
		ID:          uuid.NewString(),
		Tier:        tier,
		Centroid:    centroid,
		Scope:       scope,
		Requirement: req,
		Variations:  []Variation{v},
		MaxEntries:  maxEntries,
		TTL:         ttl,
		CreatedAt:   now,
	}
}

// State 返回当前状态。
func (c *Cluster) State(now time.Time) ClusterState {
	switch {
	case c.Expired(now):
		return StateExpired
	case len(c.Variations) >= c.MaxEntries:
		return StateSaturated
	case len(c.Variations) > 1:
		return StateGrowing
	default:
		return StateCreated
	}
}

// AtCapacity reports whether the cluster is read-only.
func (c *Cluster) AtCapacity() bool {
	return len(c.Variations) >= c.MaxEntries
}

// Expired reports whether the cluster is past its TTL.
func (c *Cluster) Expired(now time.Time) bool {
	return c.TTL > 0 && now.After(c.CreatedAt.Add(c.TTL))
}

// AppendVariation 追加一条 variation 并收紧安全要求。
// 到容量后为 no-op：已被服务过的 variation 的稳定性优先于持续替换。
// 返回是否实际追加。
func (c *Cluster) AppendVariation(v Variation, req SecurityRequirement) bool {
	if c.AtCapacity() {
		return false
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	c.Variations = append(c.Variations, v)
	c.Requirement = c.Requirement.Merge(req)
	return true
}
