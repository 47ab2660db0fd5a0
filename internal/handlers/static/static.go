package handlers_static

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

type asset struct {
	content []byte
	etag    string
}

// StaticHandler sert le script de suivi minifié une seule fois au démarrage
type StaticHandler struct {
	tracker asset
	apiURL  string
	ping    func(context.Context) error
}

func NewStaticHandler(files fs.FS, apiURL string, ping func(context.Context) error) (*StaticHandler, error) {
	content, err := fs.ReadFile(files, "ressources/js/tracker.js")
	if err != nil {
		return nil, fmt.Errorf("lecture tracker.js: %w", err)
	}

	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)
	minified, err := m.Bytes("application/javascript", content)
	if err != nil {
		log.Warn().Err(err).Msg("minification tracker.js impossible, version brute servie")
		minified = content
	}

	return &StaticHandler{
		tracker: asset{content: minified, etag: generateETag(minified)},
		apiURL:  apiURL,
		ping:    ping,
	}, nil
}

// Fonction helper pour générer un ETag
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf(`"%x"`, hash[:16])
}

func (sh *StaticHandler) TrackerJS(c *gin.Context) {
	if c.GetHeader("If-None-Match") == sh.tracker.etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("ETag", sh.tracker.etag)
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", sh.tracker.content)
}

// Config: GET /api/config
func (sh *StaticHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apiUrl": sh.apiURL})
}

func (sh *StaticHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := sh.ping(ctx); err != nil {
		log.Error().Err(err).Msg("healthz")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
