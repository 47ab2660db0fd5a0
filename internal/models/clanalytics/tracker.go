package clanalytics

import (
	"context"
	"fmt"
	"littlefolio/internal/models/clclient"
	"littlefolio/internal/models/clmetrics"
	"littlefolio/internal/models/clredis"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	MaxTitleLength    = 200
	MaxReferrerLength = 500

	// fenêtre pendant laquelle une durée complète la vue déjà enregistrée
	DurationWindow = 24 * time.Hour
)

type PageInput struct {
	Page      string `json:"page" binding:"required,max=500,pagepath"`
	Title     string `json:"title"`
	TimeSpent *int   `json:"timeSpent" binding:"omitempty,min=0,max=86400"`
}

type BlogInput struct {
	PostID   uint `json:"postId" binding:"required"`
	ReadTime *int `json:"readTime" binding:"omitempty,min=0,max=86400"`
}

type ProjectInput struct {
	ProjectID uint `json:"projectId" binding:"required"`
}

type EventInput struct {
	Event string         `json:"event" binding:"required"`
	Data  map[string]any `json:"data"`
	Page  string         `json:"page" binding:"omitempty,max=500"`
}

// Tracker enregistre les vues et événements, les robots ne sont jamais comptés
type Tracker struct {
	store    *Store
	redis    *clredis.Client
	homePath string
}

func NewTracker(store *Store, redis *clredis.Client, homePath string) *Tracker {
	if homePath == "" {
		homePath = "/"
	}
	if len(homePath) > 1 {
		homePath = strings.TrimRight(homePath, "/")
	}
	return &Tracker{store: store, redis: redis, homePath: homePath}
}

// IsHome compare le chemin sans query ni fragment
func (t *Tracker) IsHome(page string) bool {
	if u, err := url.Parse(page); err == nil {
		page = u.Path
	}
	if page == "" {
		page = "/"
	}
	if len(page) > 1 {
		page = strings.TrimRight(page, "/")
	}
	return page == t.homePath
}

func (t *Tracker) skip(kind string, info clclient.Info) bool {
	if info.IsBot {
		clmetrics.BotsSkippedTotal.WithLabelValues(kind).Inc()
		return true
	}
	return false
}

func (t *Tracker) done(ctx context.Context, kind string, info clclient.Info) {
	clmetrics.TrackedTotal.WithLabelValues(kind).Inc()
	if err := t.redis.IncrDaily(ctx, kind, info.IP, t.store.now()); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("compteur redis non mis à jour")
	}
}

// TrackPage: seule la page d'accueil crée ou met à jour le visiteur.
// Un envoi avec timeSpent complète la vue du chargement au lieu d'en créer une autre.
func (t *Tracker) TrackPage(ctx context.Context, info clclient.Info, in PageInput) (bool, error) {
	if t.skip("page", info) {
		return false, nil
	}

	if in.TimeSpent != nil {
		visitor, err := t.store.FindVisitor(ctx, info.IP)
		if err != nil {
			return false, err
		}
		if visitor != nil {
			updated, err := t.store.recordDuration(ctx, visitor.ID, in.Page, *in.TimeSpent)
			if err != nil {
				return false, err
			}
			if updated {
				clmetrics.TrackedTotal.WithLabelValues("duration").Inc()
				return true, nil
			}
		}
	}

	var (
		visitor *Visitor
		err     error
	)
	if t.IsHome(in.Page) {
		visitor, err = t.store.ResolveVisitor(ctx, info)
	} else {
		visitor, err = t.store.FindVisitor(ctx, info.IP)
	}
	if err != nil {
		return false, err
	}

	view := PageView{
		Page:      in.Page,
		Title:     clclient.Truncate(strings.TrimSpace(in.Title), MaxTitleLength),
		Device:    info.Device,
		Browser:   info.Browser,
		OS:        info.OS,
		TimeSpent: in.TimeSpent,
		CreatedAt: t.store.now(),
	}
	if info.Referrer != nil {
		ref := clclient.Truncate(*info.Referrer, MaxReferrerLength)
		view.Referrer = &ref
	}
	if visitor != nil {
		view.VisitorID = &visitor.ID
		view.Country = visitor.Country
		view.Region = visitor.Region
		view.City = visitor.City
	}

	if err := t.store.db.WithContext(ctx).Create(&view).Error; err != nil {
		return false, fmt.Errorf("enregistrement page vue: %w", err)
	}

	t.done(ctx, "page", info)
	return true, nil
}

func (t *Tracker) TrackBlog(ctx context.Context, info clclient.Info, in BlogInput) (bool, error) {
	if t.skip("blog", info) {
		return false, nil
	}

	visitor, err := t.store.FindVisitor(ctx, info.IP)
	if err != nil {
		return false, err
	}

	view := BlogView{PostID: in.PostID, ReadTime: in.ReadTime, CreatedAt: t.store.now()}
	if visitor != nil {
		view.VisitorID = &visitor.ID
	}

	if err := t.store.incrementAndRecord(ctx, "blog_posts", in.PostID, &view); err != nil {
		return false, err
	}

	t.done(ctx, "blog", info)
	return true, nil
}

func (t *Tracker) TrackProject(ctx context.Context, info clclient.Info, in ProjectInput) (bool, error) {
	if t.skip("project", info) {
		return false, nil
	}

	visitor, err := t.store.FindVisitor(ctx, info.IP)
	if err != nil {
		return false, err
	}

	view := ProjectView{ProjectID: in.ProjectID, CreatedAt: t.store.now()}
	if visitor != nil {
		view.VisitorID = &visitor.ID
	}

	if err := t.store.incrementAndRecord(ctx, "projects", in.ProjectID, &view); err != nil {
		return false, err
	}

	t.done(ctx, "project", info)
	return true, nil
}

func (t *Tracker) TrackEvent(ctx context.Context, info clclient.Info, in EventInput) (bool, error) {
	if t.skip("event", info) {
		return false, nil
	}

	ev, err := ParseEvent(in.Event, in.Data)
	if err != nil {
		return false, err
	}

	visitor, err := t.store.FindVisitor(ctx, info.IP)
	if err != nil {
		return false, err
	}

	record := CustomEvent{
		Kind:      ev.Kind,
		Name:      ev.Name,
		Page:      in.Page,
		Payload:   ev.Payload,
		CreatedAt: t.store.now(),
	}
	if visitor != nil {
		record.VisitorID = &visitor.ID
	}

	if err := t.store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return false, fmt.Errorf("enregistrement événement: %w", err)
	}

	log.Debug().Str("kind", ev.Kind).Str("name", ev.Name).Str("page", in.Page).Msg("événement enregistré")
	t.done(ctx, "event", info)
	return true, nil
}
