package clgeo

import (
	"fmt"
	"littlefolio/internal/models/clconfig"
	"littlefolio/internal/models/clredis"
)

// NewProvider construit le provider décrit par la configuration
func NewProvider(cfg clconfig.GeoConfig, redis *clredis.Client) (Provider, error) {
	var provider Provider

	switch cfg.Provider {
	case "", "none":
		return Noop{}, nil
	case "maxmind":
		mm, err := NewMaxMind(cfg.MaxmindPath)
		if err != nil {
			return nil, err
		}
		provider = mm
	case "ipapi":
		provider = NewIPAPI(cfg.IPAPIURL, 0)
	default:
		return nil, fmt.Errorf("provider de géolocalisation inconnu: %s", cfg.Provider)
	}

	return NewCached(provider, redis, cfg.CacheTTL), nil
}
