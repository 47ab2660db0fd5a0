package clgeo

import (
	"context"
	"littlefolio/internal/models/clredis"
	"time"

	"github.com/rs/zerolog/log"
)

// Cached mémorise les résolutions dans redis
type Cached struct {
	next  Provider
	redis *clredis.Client
	ttl   time.Duration
}

// NewCached retourne next tel quel si redis est désactivé
func NewCached(next Provider, client *clredis.Client, ttl time.Duration) Provider {
	if !client.Enabled() {
		return next
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{next: next, redis: client, ttl: ttl}
}

func (c *Cached) Name() string { return c.next.Name() }

// Close ferme le provider sous-jacent s'il le permet (base maxmind)
func (c *Cached) Close() error {
	if closer, ok := c.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cached) Lookup(ctx context.Context, ip string, accuracy string) (*Location, error) {
	key := "geo:" + accuracy + ":" + ip

	var loc Location
	found, err := c.redis.GetJSON(ctx, key, &loc)
	if err != nil {
		log.Warn().Err(err).Msg("lecture cache géolocalisation")
	}
	if found {
		return &loc, nil
	}

	res, err := c.next.Lookup(ctx, ip, accuracy)
	if err != nil || res == nil {
		return res, err
	}

	if err := c.redis.SetJSON(ctx, key, res, c.ttl); err != nil {
		log.Warn().Err(err).Msg("écriture cache géolocalisation")
	}
	return res, nil
}
