package handlers_rss

import (
	"fmt"
	"littlefolio/internal/models/clfolio"
	"littlefolio/internal/models/clrss"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const feedSize = 20

func baseURL(c *gin.Context, public string) string {
	if public != "" {
		return strings.TrimRight(public, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}

// RssHandler génère le flux des derniers articles publiés
func RssHandler(lf *clfolio.Littlefolio) gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := lf.Posts.LatestPublished(c.Request.Context(), feedSize)
		if err != nil {
			log.Error().Err(err).Msg("flux RSS")
			c.XML(http.StatusInternalServerError, gin.H{"error": "Erreur récupération articles"})
			return
		}

		site := lf.Configuration.Site
		feed := clrss.Feed{
			BaseURL:     baseURL(c, site.PublicAPIURL),
			SiteName:    site.Name,
			Description: site.Description,
			Version:     lf.Version,
			StaticPath:  lf.Configuration.StaticPath,
		}

		output, err := clrss.Build(feed, posts, time.Now()).Marshal()
		if err != nil {
			c.XML(http.StatusInternalServerError, gin.H{"error": "Erreur génération RSS"})
			return
		}

		c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", output)
	}
}
