package handlers_track

import (
	"context"
	"errors"
	"littlefolio/internal/models/clanalytics"
	"littlefolio/internal/models/clclient"
	"littlefolio/internal/models/cllog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// TrackHandler expose /api/track/*. tracker nil: analytics désactivé, rien n'est enregistré
type TrackHandler struct {
	tracker *clanalytics.Tracker
}

func NewTrackHandler(tracker *clanalytics.Tracker) *TrackHandler {
	return &TrackHandler{tracker: tracker}
}

func (th *TrackHandler) Page(c *gin.Context) {
	var in clanalytics.PageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	th.respond(c, "page", func(ctx context.Context, info clclient.Info) (bool, error) {
		return th.tracker.TrackPage(ctx, info, in)
	})
}

func (th *TrackHandler) Blog(c *gin.Context) {
	var in clanalytics.BlogInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	th.respond(c, "blog", func(ctx context.Context, info clclient.Info) (bool, error) {
		return th.tracker.TrackBlog(ctx, info, in)
	})
}

func (th *TrackHandler) Project(c *gin.Context) {
	var in clanalytics.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	th.respond(c, "project", func(ctx context.Context, info clclient.Info) (bool, error) {
		return th.tracker.TrackProject(ctx, info, in)
	})
}

func (th *TrackHandler) Event(c *gin.Context) {
	var in clanalytics.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	th.respond(c, "event", func(ctx context.Context, info clclient.Info) (bool, error) {
		return th.tracker.TrackEvent(ctx, info, in)
	})
}

func (th *TrackHandler) respond(c *gin.Context, kind string, track func(context.Context, clclient.Info) (bool, error)) {
	if th.tracker == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "tracked": false})
		return
	}

	tracked, err := track(c.Request.Context(), clclient.Extract(c.Request))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "tracked": tracked})
	case errors.Is(err, clanalytics.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, clanalytics.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Élément non trouvé"})
	default:
		log.Error().Err(err).
			Str("request_id", cllog.RequestID(c.Request.Context())).
			Str("kind", kind).
			Msg("Erreur tracking")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
	}
}
