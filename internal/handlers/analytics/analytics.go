package handlers_analytics

import (
	"littlefolio/internal/models/clanalytics"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AnalyticsHandler struct {
	store   *clanalytics.Store
	tracker *clanalytics.Tracker
}

func NewAnalyticsHandler(store *clanalytics.Store, tracker *clanalytics.Tracker) *AnalyticsHandler {
	return &AnalyticsHandler{
		store:   store,
		tracker: tracker,
	}
}

// GetStats30Days retourne les statistiques des 30 derniers jours
func (ah *AnalyticsHandler) GetStats30Days(c *gin.Context) {
	stats, err := ah.store.Stats30Days(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("statistiques analytics")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Erreur interne du serveur",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRealtimeStats retourne les compteurs du jour
func (ah *AnalyticsHandler) GetRealtimeStats(c *gin.Context) {
	stats, err := ah.tracker.Realtime(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("statistiques temps réel")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Erreur interne du serveur",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
