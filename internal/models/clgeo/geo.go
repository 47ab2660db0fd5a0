package clgeo

import (
	"context"
	"errors"
	"littlefolio/internal/models/clmetrics"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	AccuracyHigh = "high"
	AccuracyLow  = "low"
)

var (
	ErrNoData      = errors.New("aucune donnée de localisation")
	ErrInvalidIP   = errors.New("adresse IP invalide")
	ErrRateLimited = errors.New("limite de requêtes de géolocalisation atteinte")
)

// Location vide quand la résolution échoue
type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

func (l Location) IsEmpty() bool {
	return l.Country == "" && l.Region == "" && l.City == ""
}

// limite la précision selon l'indice demandé
func (l Location) withAccuracy(accuracy string) Location {
	if accuracy == AccuracyLow {
		return Location{Country: l.Country}
	}
	return l
}

type Provider interface {
	Lookup(ctx context.Context, ip string, accuracy string) (*Location, error)
	Name() string
}

// Enricher encapsule un Provider et n'échoue jamais
type Enricher struct {
	provider Provider
	timeout  time.Duration
}

func NewEnricher(provider Provider, timeout time.Duration) *Enricher {
	if provider == nil {
		provider = Noop{}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Enricher{provider: provider, timeout: timeout}
}

func (e *Enricher) Provider() string {
	return e.provider.Name()
}

// Locate retourne une Location vide pour les IP privées, invalides ou en cas d'erreur
func (e *Enricher) Locate(ctx context.Context, ip string, accuracy string) Location {
	name := e.provider.Name()

	if !IsPublicIP(ip) {
		clmetrics.GeoLookupsTotal.WithLabelValues(name, "skipped").Inc()
		return Location{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	loc, err := e.provider.Lookup(ctx, ip, accuracy)
	if err != nil {
		clmetrics.GeoLookupsTotal.WithLabelValues(name, "error").Inc()
		ev := log.Warn()
		if errors.Is(err, ErrNoData) {
			ev = log.Debug()
		}
		ev.Err(err).Str("provider", name).Str("ip", ip).Msg("géolocalisation impossible")
		return Location{}
	}
	if loc == nil {
		clmetrics.GeoLookupsTotal.WithLabelValues(name, "empty").Inc()
		return Location{}
	}

	clmetrics.GeoLookupsTotal.WithLabelValues(name, "ok").Inc()
	return loc.withAccuracy(accuracy)
}

// IsPublicIP exclut loopback, réseaux privés, link-local et adresses non spécifiées
func IsPublicIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast())
}

// Noop est utilisé quand aucun provider n'est configuré
type Noop struct{}

func (Noop) Name() string { return "none" }

func (Noop) Lookup(context.Context, string, string) (*Location, error) {
	return nil, nil
}
