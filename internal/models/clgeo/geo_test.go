package clgeo

import (
	"context"
	"errors"
	"littlefolio/internal/models/clconfig"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	loc   *Location
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Lookup(context.Context, string, string) (*Location, error) {
	f.calls++
	return f.loc, f.err
}

func TestIsPublicIP(t *testing.T) {
	for ip, want := range map[string]bool{
		"8.8.8.8":         true,
		"2a00:1450::1":    true,
		"127.0.0.1":       false,
		"10.0.0.4":        false,
		"192.168.1.1":     false,
		"172.16.5.5":      false,
		"::1":             false,
		"fe80::1":         false,
		"0.0.0.0":         false,
		"::ffff:10.0.0.1": false,
		"pas une ip":      false,
		"":                false,
	} {
		assert.Equal(t, want, IsPublicIP(ip), ip)
	}
}

func TestEnricherLocate(t *testing.T) {
	full := &Location{Country: "France", Region: "Île-de-France", City: "Paris"}

	t.Run("succès haute précision", func(t *testing.T) {
		p := &fakeProvider{loc: full}
		loc := NewEnricher(p, time.Second).Locate(context.Background(), "8.8.8.8", AccuracyHigh)
		assert.Equal(t, *full, loc)
		assert.Equal(t, 1, p.calls)
	})

	t.Run("basse précision", func(t *testing.T) {
		p := &fakeProvider{loc: full}
		loc := NewEnricher(p, time.Second).Locate(context.Background(), "8.8.8.8", AccuracyLow)
		assert.Equal(t, Location{Country: "France"}, loc)
	})

	t.Run("erreur provider", func(t *testing.T) {
		p := &fakeProvider{err: errors.New("timeout")}
		loc := NewEnricher(p, time.Second).Locate(context.Background(), "8.8.8.8", AccuracyHigh)
		assert.True(t, loc.IsEmpty())
	})

	t.Run("ip privée sans appel", func(t *testing.T) {
		p := &fakeProvider{loc: full}
		loc := NewEnricher(p, time.Second).Locate(context.Background(), "192.168.0.10", AccuracyHigh)
		assert.True(t, loc.IsEmpty())
		assert.Zero(t, p.calls)
	})

	t.Run("sans provider", func(t *testing.T) {
		e := NewEnricher(nil, 0)
		assert.Equal(t, "none", e.Provider())
		assert.True(t, e.Locate(context.Background(), "8.8.8.8", AccuracyHigh).IsEmpty())
	})
}

func newIPAPIServer(t *testing.T, hits *int32, handler func(w http.ResponseWriter, r *http.Request)) *IPAPI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewIPAPI(srv.URL, time.Second)
}

func TestIPAPILookup(t *testing.T) {
	var hits int32
	var lastQuery string
	p := newIPAPIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.RawQuery
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","country":"United States","regionName":"California","city":"Mountain View"}`))
	})

	loc, err := p.Lookup(context.Background(), "8.8.8.8", AccuracyHigh)
	require.NoError(t, err)
	assert.Equal(t, &Location{Country: "United States", Region: "California", City: "Mountain View"}, loc)
	assert.Contains(t, lastQuery, "city")

	loc, err = p.Lookup(context.Background(), "8.8.8.8", AccuracyLow)
	require.NoError(t, err)
	assert.Equal(t, &Location{Country: "United States"}, loc)
	assert.NotContains(t, lastQuery, "city")
	assert.Equal(t, int32(2), hits)
}

func TestIPAPIFailures(t *testing.T) {
	t.Run("status fail", func(t *testing.T) {
		var hits int32
		p := newIPAPIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
		})
		_, err := p.Lookup(context.Background(), "8.8.8.8", AccuracyHigh)
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("disjoncteur ouvert après erreurs", func(t *testing.T) {
		var hits int32
		p := newIPAPIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		for i := 0; i < 8; i++ {
			_, err := p.Lookup(context.Background(), "8.8.8.8", AccuracyHigh)
			assert.Error(t, err)
		}
		// les appels suivants ne touchent plus le serveur
		assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
	})

	t.Run("limite de débit", func(t *testing.T) {
		var hits int32
		p := newIPAPIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"success","country":"France"}`))
		})
		var limited bool
		for i := 0; i < ipAPIRequestsPerMinute+5; i++ {
			if _, err := p.Lookup(context.Background(), "8.8.8.8", AccuracyLow); errors.Is(err, ErrRateLimited) {
				limited = true
				break
			}
		}
		assert.True(t, limited)
	})
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(clconfig.GeoConfig{Provider: "none"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "none", p.Name())

	p, err = NewProvider(clconfig.GeoConfig{Provider: "ipapi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ipapi", p.Name())
	// sans redis pas de cache
	_, isCached := p.(*Cached)
	assert.False(t, isCached)

	_, err = NewProvider(clconfig.GeoConfig{Provider: "maxmind", MaxmindPath: "/nexiste/pas.mmdb"}, nil)
	assert.Error(t, err)

	_, err = NewProvider(clconfig.GeoConfig{Provider: "autre"}, nil)
	assert.True(t, err != nil && strings.Contains(err.Error(), "inconnu"))
}
