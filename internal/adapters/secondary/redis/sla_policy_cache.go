package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultSLACacheTTL = 10 * time.Minute
	slaKeyPrefix       = "sla:contract:"
)

// cachedSLA is the stored form. Found=false records that the contract has
// no SLA so the database is not asked again until the entry expires.
type cachedSLA struct {
	Found  bool                  `json:"found"`
	Params *domain.SLAParameters `json:"params,omitempty"`
}

// SLAPolicyCache is a read-through cache in front of an SLAPolicyRepository.
// Redis failures degrade to a direct repository read. Contract SLA changes
// become visible once the entry's TTL runs out.
type SLAPolicyCache struct {
	next   ports.SLAPolicyRepository
	client *Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.SLAPolicyRepository = (*SLAPolicyCache)(nil)

func NewSLAPolicyCache(next ports.SLAPolicyRepository, client *Client, ttl time.Duration, logger *slog.Logger) *SLAPolicyCache {
	if ttl <= 0 {
		ttl = DefaultSLACacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SLAPolicyCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "sla_policy_cache"),
	}
}

// GetContractSLA serves from Redis when possible and populates it on a miss.
func (c *SLAPolicyCache) GetContractSLA(ctx context.Context, contractID uuid.UUID) (*domain.SLAParameters, error) {
	key := slaKeyPrefix + contractID.String()

	raw, err := c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedSLA
		if err := json.Unmarshal(raw, &entry); err == nil {
			return entry.Params, nil
		}
		c.logger.Warn("discarding malformed sla cache entry", "key", key)
	case !errors.Is(err, goredis.Nil):
		c.logger.Warn("sla cache read failed", "key", key, "error", err)
	}

	params, err := c.next.GetContractSLA(ctx, contractID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedSLA{Found: params != nil, Params: params})
	if err == nil {
		err = c.client.rdb.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("sla cache write failed", "key", key, "error", err)
	}
	return params, nil
}
