package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"pvyield/internal/metrics"
	"pvyield/internal/pvwatts"

	"go.uber.org/zap"
)

type Engine interface {
	Simulate(ctx context.Context, req pvwatts.Request) (*pvwatts.Response, error)
}

// CachedEngine serves repeated engine requests from the database. Cache
// failures are logged and never fail a simulation.
type CachedEngine struct {
	next   Engine
	db     *Database
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewCachedEngine(next Engine, db *Database, ttl time.Duration, logger *zap.Logger) *CachedEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEngine{
		next:   next,
		db:     db,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// RequestKey hashes the canonical query of req. The api key is never part of
// the query, so keys are shareable across credentials.
func RequestKey(req pvwatts.Request) string {
	sum := sha256.Sum256([]byte(req.Values().Encode()))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEngine) Simulate(ctx context.Context, req pvwatts.Request) (*pvwatts.Response, error) {
	key := RequestKey(req)

	if resp, ok := c.lookup(key); ok {
		metrics.EngineRequests.WithLabelValues(metrics.OutcomeCached).Inc()
		c.logger.Debug("Engine response served from cache", zap.String("key", key))
		return resp, nil
	}

	resp, err := c.next.Simulate(ctx, req)
	if err != nil {
		return nil, err
	}

	c.store(key, req, resp)
	return resp, nil
}

func (c *CachedEngine) lookup(key string) (*pvwatts.Response, bool) {
	var notBefore time.Time
	if c.ttl > 0 {
		notBefore = c.now().Add(-c.ttl)
	}

	entry, err := c.db.GetResponse(key, notBefore)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var resp pvwatts.Response
	if err := json.Unmarshal(entry.Payload, &resp); err != nil {
		c.logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &resp, true
}

func (c *CachedEngine) store(key string, req pvwatts.Request, resp *pvwatts.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("Failed to encode engine response for cache", zap.Error(err))
		return
	}

	entry := &EngineResponse{
		RequestKey: key,
		Query:      req.Values().Encode(),
		Payload:    payload,
		Station:    resp.StationInfo.Location,
		ACAnnual:   resp.Outputs.ACAnnual,
		FetchedAt:  c.now(),
	}
	if err := c.db.SaveResponse(entry); err != nil {
		c.logger.Warn("Failed to store engine response", zap.String("key", key), zap.Error(err))
	}
}
