package semcache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore 基于 Redis 的簇存储，支持多实例共享缓存。
//
// 每个簇一个 JSON 记录，键为 semcache:{tier}:{clusterID}，簇级 TTL
// 直接映射为 Redis 键过期。追加采用读-改-写：并发追加可能在容量上
// 短暂轻微超额，但写入是整记录替换，不会破坏已有 variation 的内容
// （见包文档中的 append-and-cap 说明）。
type RedisStore struct {
	client *redis.Client
	cfg    Config
	aead   cipher.AEAD // nil 表示两层都未启用加密
	logger *zap.Logger
}

// NewRedisStore 创建 Redis 簇存储。
func NewRedisStore(client *redis.Client, cfg Config, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &RedisStore{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "redis_cache_store")),
	}

	if cfg.Response.Encrypt || cfg.Context.Encrypt {
		if cfg.EncryptionKey == "" {
			return nil, errors.New("cache encryption enabled without encryption_key")
		}
		key := sha256.Sum256([]byte(cfg.EncryptionKey))
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, fmt.Errorf("create cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("create gcm: %w", err)
		}
		s.aead = aead
	}

	return s, nil
}

func clusterKey(tier Tier, clusterID string) string {
	return fmt.Sprintf("semcache:%s:%s", tier, clusterID)
}

func tierPattern(tier Tier) string {
	return fmt.Sprintf("semcache:%s:*", tier)
}

func (s *RedisStore) encryptTier(tier Tier) bool {
	return s.aead != nil && s.cfg.TierConfig(tier).Encrypt
}

// ListClusters 扫描某层键空间并读出全部簇。
func (s *RedisStore) ListClusters(ctx context.Context, tier Tier) ([]*Cluster, error) {
	var clusters []*Cluster

	iter := s.client.Scan(ctx, 0, tierPattern(tier), 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			// 扫描与读取之间键已过期
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cache get failed: %w", err)
		}

		var c Cluster
		if err := json.Unmarshal(data, &c); err != nil {
			s.logger.Warn("skipping malformed cluster record",
				zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		if err := s.decryptVariations(&c); err != nil {
			s.logger.Warn("skipping undecryptable cluster record",
				zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		clusters = append(clusters, &c)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache scan failed: %w", err)
	}
	return clusters, nil
}

// PutCluster 写入新簇，TTL 映射为 Redis 键过期。
func (s *RedisStore) PutCluster(ctx context.Context, c *Cluster) error {
	record := cloneCluster(c)
	if err := s.encryptVariations(record); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal cluster: %w", err)
	}

	if err := s.client.Set(ctx, clusterKey(c.Tier, c.ID), data, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// AppendVariation 读-改-写追加；容量已满或簇已不存在时静默放弃。
func (s *RedisStore) AppendVariation(ctx context.Context, tier Tier, clusterID string, v Variation, req SecurityRequirement) error {
	key := clusterKey(tier, clusterID)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrClusterNotFound
	}
	if err != nil {
		return fmt.Errorf("cache get failed: %w", err)
	}

	var c Cluster
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("unmarshal cluster: %w", err)
	}
	if err := s.decryptVariations(&c); err != nil {
		return err
	}

	if !c.AppendVariation(v, req) {
		return nil
	}
	if err := s.encryptVariations(&c); err != nil {
		return err
	}

	updated, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshal cluster: %w", err)
	}

	// KEEPTTL：TTL 从创建时刻起算，追加不重置过期
	if err := s.client.Set(ctx, key, updated, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// DeleteCluster 删除单个簇。
func (s *RedisStore) DeleteCluster(ctx context.Context, tier Tier, clusterID string) error {
	if err := s.client.Del(ctx, clusterKey(tier, clusterID)).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Clear 清空某层的全部簇。
func (s *RedisStore) Clear(ctx context.Context, tier Tier) error {
	iter := s.client.Scan(ctx, 0, tierPattern(tier), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	s.logger.Info("cache tier cleared",
		zap.String("tier", string(tier)), zap.Int("clusters", len(keys)))
	return nil
}

// ============================================================
// Variation 载荷加密（AES-GCM，随机 nonce 前置）
// ============================================================

func (s *RedisStore) encryptVariations(c *Cluster) error {
	if !s.encryptTier(c.Tier) {
		return nil
	}
	for i := range c.Variations {
		sealed, err := s.seal(c.Variations[i].Payload)
		if err != nil {
			return err
		}
		c.Variations[i].Payload = sealed
	}
	return nil
}

func (s *RedisStore) decryptVariations(c *Cluster) error {
	if !s.encryptTier(c.Tier) {
		return nil
	}
	for i := range c.Variations {
		opened, err := s.open(c.Variations[i].Payload)
		if err != nil {
			return err
		}
		c.Variations[i].Payload = opened
	}
	return nil
}

func (s *RedisStore) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *RedisStore) open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.New("sealed payload too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}
	return plaintext, nil
}
