package clanalytics

import (
	"context"
	"littlefolio/internal/models/clagent"
	"littlefolio/internal/models/clclient"
	"littlefolio/internal/models/clgeo"
	"littlefolio/internal/models/clposts"
	"littlefolio/internal/models/clprojects"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type countingGeo struct {
	calls  int
	loc    clgeo.Location
	before func()
}

func (g *countingGeo) Name() string { return "test" }

func (g *countingGeo) Lookup(context.Context, string, string) (*clgeo.Location, error) {
	g.calls++
	if g.before != nil {
		g.before()
	}
	loc := g.loc
	return &loc, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, db.AutoMigrate(&clposts.BlogPost{}, &clprojects.Project{}))
	return db
}

func setupTracker(t *testing.T) (*Tracker, *countingGeo, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	geo := &countingGeo{loc: clgeo.Location{Country: "France", Region: "Bretagne", City: "Rennes"}}
	store := NewStore(db, db, clgeo.NewEnricher(geo, time.Second), clgeo.AccuracyHigh)
	return NewTracker(store, nil, "/"), geo, db
}

func browser(ip string) clclient.Info {
	return clclient.Info{
		IP:        ip,
		UserAgent: "Mozilla/5.0 Firefox/121.0",
		Device:    clagent.DeviceDesktop,
		Browser:   clagent.BrowserFirefox,
		OS:        clagent.OSLinux,
	}
}

func bot(ip string) clclient.Info {
	info := browser(ip)
	info.IsBot = true
	info.Device = clagent.DeviceBot
	return info
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestTrackPageBot(t *testing.T) {
	tracker, geo, db := setupTracker(t)

	tracked, err := tracker.TrackPage(context.Background(), bot("8.8.8.8"), PageInput{Page: "/"})
	require.NoError(t, err)
	assert.False(t, tracked)
	assert.Zero(t, count(t, db, &Visitor{}))
	assert.Zero(t, count(t, db, &PageView{}))
	assert.Zero(t, geo.calls)
}

func TestTrackPageHomeResolvesVisitor(t *testing.T) {
	tracker, geo, db := setupTracker(t)
	ctx := context.Background()

	tracked, err := tracker.TrackPage(ctx, browser("8.8.8.8"), PageInput{Page: "/", Title: "Accueil"})
	require.NoError(t, err)
	assert.True(t, tracked)

	var v Visitor
	require.NoError(t, db.First(&v).Error)
	assert.Equal(t, int64(1), v.VisitCount)
	assert.Equal(t, "Rennes", v.City)
	assert.Equal(t, 1, geo.calls)

	second := browser("8.8.8.8")
	second.UserAgent = "Mozilla/5.0 Chrome/120"
	_, err = tracker.TrackPage(ctx, second, PageInput{Page: "/?utm_source=x"})
	require.NoError(t, err)

	require.NoError(t, db.First(&v).Error)
	assert.Equal(t, int64(2), v.VisitCount)
	assert.Equal(t, "Mozilla/5.0 Chrome/120", v.UserAgent)
	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, int64(1), count(t, db, &Visitor{}))

	var views []PageView
	require.NoError(t, db.Order("id").Find(&views).Error)
	require.Len(t, views, 2)
	require.NotNil(t, views[0].VisitorID)
	assert.Equal(t, v.ID, *views[0].VisitorID)
	assert.Equal(t, "France", views[0].Country)
	assert.Equal(t, "Rennes", views[1].City)
}

func TestTrackPageDurationCompletesView(t *testing.T) {
	tracker, geo, db := setupTracker(t)
	ctx := context.Background()

	_, err := tracker.TrackPage(ctx, browser("8.8.8.8"), PageInput{Page: "/", Title: "Accueil"})
	require.NoError(t, err)

	// onglet masqué deux fois, durée cumulée depuis le chargement
	for _, spent := range []int{12, 42} {
		tracked, err := tracker.TrackPage(ctx, browser("8.8.8.8"), PageInput{Page: "/", TimeSpent: &spent})
		require.NoError(t, err)
		assert.True(t, tracked)
	}

	var views []PageView
	require.NoError(t, db.Find(&views).Error)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].TimeSpent)
	assert.Equal(t, 42, *views[0].TimeSpent)
	assert.Equal(t, "Accueil", views[0].Title)

	var v Visitor
	require.NoError(t, db.First(&v).Error)
	assert.Equal(t, int64(1), v.VisitCount)
	assert.Equal(t, 1, geo.calls)

	// une autre page sans vue préalable crée sa propre vue
	spent := 5
	_, err = tracker.TrackPage(ctx, browser("8.8.8.8"), PageInput{Page: "/projects", TimeSpent: &spent})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, db, &PageView{}))
}

func TestTrackPageOtherRouteOnlyReadsVisitor(t *testing.T) {
	tracker, geo, db := setupTracker(t)
	ctx := context.Background()

	tracked, err := tracker.TrackPage(ctx, browser("1.1.1.1"), PageInput{Page: "/blog/mon-article"})
	require.NoError(t, err)
	assert.True(t, tracked)
	assert.Zero(t, count(t, db, &Visitor{}))
	assert.Zero(t, geo.calls)

	var view PageView
	require.NoError(t, db.First(&view).Error)
	assert.Nil(t, view.VisitorID)
	assert.Empty(t, view.Country)

	// une fois le visiteur connu, les autres pages le référencent sans l'incrémenter
	_, err = tracker.TrackPage(ctx, browser("1.1.1.1"), PageInput{Page: "/"})
	require.NoError(t, err)
	_, err = tracker.TrackPage(ctx, browser("1.1.1.1"), PageInput{Page: "/projects"})
	require.NoError(t, err)

	var v Visitor
	require.NoError(t, db.First(&v).Error)
	assert.Equal(t, int64(1), v.VisitCount)

	var last PageView
	require.NoError(t, db.Order("id DESC").First(&last).Error)
	require.NotNil(t, last.VisitorID)
	assert.Equal(t, v.ID, *last.VisitorID)
}

func TestTrackPageTruncation(t *testing.T) {
	tracker, _, db := setupTracker(t)

	info := browser("8.8.8.8")
	ref := "https://example.com/" + strings.Repeat("r", 600)
	info.Referrer = &ref

	_, err := tracker.TrackPage(context.Background(), info, PageInput{Page: "/", Title: strings.Repeat("é", 250)})
	require.NoError(t, err)

	var view PageView
	require.NoError(t, db.First(&view).Error)
	assert.Equal(t, 200, utf8.RuneCountInString(view.Title))
	require.NotNil(t, view.Referrer)
	assert.Equal(t, 500, utf8.RuneCountInString(*view.Referrer))
}

func TestResolveVisitorConcurrentInsert(t *testing.T) {
	db := setupTestDB(t)
	geo := &countingGeo{}
	// une autre requête crée le visiteur pendant la géolocalisation
	geo.before = func() {
		require.NoError(t, db.Create(&Visitor{IPAddress: "9.9.9.9", VisitCount: 1, LastVisit: time.Now()}).Error)
	}
	store := NewStore(db, db, clgeo.NewEnricher(geo, time.Second), clgeo.AccuracyHigh)

	v, err := store.ResolveVisitor(context.Background(), browser("9.9.9.9"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.VisitCount)
	assert.Equal(t, int64(1), count(t, db, &Visitor{}))
}

func TestTrackBlog(t *testing.T) {
	tracker, _, db := setupTracker(t)
	ctx := context.Background()

	post := clposts.BlogPost{Title: "Article", Slug: "article", Content: "texte", Published: true}
	require.NoError(t, db.Create(&post).Error)

	readTime := 42
	tracked, err := tracker.TrackBlog(ctx, browser("8.8.8.8"), BlogInput{PostID: post.ID, ReadTime: &readTime})
	require.NoError(t, err)
	assert.True(t, tracked)

	var reloaded clposts.BlogPost
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Equal(t, int64(1), reloaded.Views)

	var view BlogView
	require.NoError(t, db.First(&view).Error)
	assert.Equal(t, post.ID, view.PostID)
	assert.Equal(t, 42, *view.ReadTime)

	_, err = tracker.TrackBlog(ctx, browser("8.8.8.8"), BlogInput{PostID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), count(t, db, &BlogView{}))

	tracked, err = tracker.TrackBlog(ctx, bot("8.8.8.8"), BlogInput{PostID: post.ID})
	require.NoError(t, err)
	assert.False(t, tracked)
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Equal(t, int64(1), reloaded.Views)
}

func TestTrackProjectSeparateContentDB(t *testing.T) {
	analyticsDB := setupTestDB(t)
	contentDB := setupTestDB(t)
	store := NewStore(analyticsDB, contentDB, nil, "")
	tracker := NewTracker(store, nil, "")
	ctx := context.Background()

	project := clprojects.Project{Title: "littlefolio"}
	require.NoError(t, contentDB.Create(&project).Error)

	tracked, err := tracker.TrackProject(ctx, browser("8.8.8.8"), ProjectInput{ProjectID: project.ID})
	require.NoError(t, err)
	assert.True(t, tracked)

	var reloaded clprojects.Project
	require.NoError(t, contentDB.First(&reloaded, project.ID).Error)
	assert.Equal(t, int64(1), reloaded.Views)
	assert.Equal(t, int64(1), count(t, analyticsDB, &ProjectView{}))

	_, err = tracker.TrackProject(ctx, browser("8.8.8.8"), ProjectInput{ProjectID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), count(t, analyticsDB, &ProjectView{}))
}

func TestTrackEvent(t *testing.T) {
	tracker, _, db := setupTracker(t)
	ctx := context.Background()

	tracked, err := tracker.TrackEvent(ctx, browser("8.8.8.8"), EventInput{
		Event: "download",
		Data:  map[string]any{"file": "cv.pdf", "size": 1024.0},
		Page:  "/about",
	})
	require.NoError(t, err)
	assert.True(t, tracked)

	var ev CustomEvent
	require.NoError(t, db.First(&ev).Error)
	assert.Equal(t, KindDownload, ev.Kind)
	assert.Equal(t, "cv.pdf", ev.Payload["file"])
	assert.Equal(t, "/about", ev.Page)

	_, err = tracker.TrackEvent(ctx, browser("8.8.8.8"), EventInput{Event: "newsletter_signup"})
	require.NoError(t, err)
	var custom CustomEvent
	require.NoError(t, db.Where("name = ?", "newsletter_signup").First(&custom).Error)
	assert.Equal(t, KindCustom, custom.Kind)

	_, err = tracker.TrackEvent(ctx, browser("8.8.8.8"), EventInput{Event: "download"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, int64(2), count(t, db, &CustomEvent{}))

	tracked, err = tracker.TrackEvent(ctx, bot("8.8.8.8"), EventInput{Event: "click"})
	require.NoError(t, err)
	assert.False(t, tracked)
}

func TestParseEvent(t *testing.T) {
	big := map[string]any{}
	for i := 0; i < MaxPayloadKeys+1; i++ {
		big[strings.Repeat("k", i+1)] = i
	}
	heavy := map[string]any{}
	for i := 0; i < 10; i++ {
		heavy[strings.Repeat("h", i+1)] = strings.Repeat("x", 450)
	}

	tests := []struct {
		name    string
		event   string
		data    map[string]any
		kind    string
		wantErr bool
	}{
		{"click sans données", "click", nil, KindClick, false},
		{"scroll valide", "scroll", map[string]any{"depth": 75.0}, KindScroll, false},
		{"scroll hors bornes", "scroll", map[string]any{"depth": 120.0}, "", true},
		{"scroll sans depth", "scroll", map[string]any{}, "", true},
		{"outbound valide", "outbound", map[string]any{"url": "https://github.com"}, KindOutbound, false},
		{"outbound relatif", "outbound", map[string]any{"url": "/blog"}, "", true},
		{"theme", "theme", map[string]any{"theme": "dark"}, KindTheme, false},
		{"contact", "contact", map[string]any{"method": "email"}, KindContact, false},
		{"custom", "video:play", map[string]any{"id": "intro"}, KindCustom, false},
		{"nom vide", "", nil, "", true},
		{"nom invalide", "<script>", nil, "", true},
		{"nom trop long", strings.Repeat("a", 65), nil, "", true},
		{"valeur objet", "custom_x", map[string]any{"obj": map[string]any{"a": 1}}, "", true},
		{"valeur tableau", "custom_x", map[string]any{"arr": []any{1, 2}}, "", true},
		{"valeur trop longue", "custom_x", map[string]any{"v": strings.Repeat("x", 501)}, "", true},
		{"clé trop longue", "custom_x", map[string]any{strings.Repeat("k", 65): 1}, "", true},
		{"trop de clés", "custom_x", big, "", true},
		{"charge trop lourde", "custom_x", heavy, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent(tt.event, tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.event, ev.Name)
			assert.NotNil(t, ev.Payload)
		})
	}
}

func TestPurgeKeepsVisitors(t *testing.T) {
	tracker, _, db := setupTracker(t)
	ctx := context.Background()
	store := tracker.store

	now := time.Now()
	old := now.AddDate(0, 0, -400)

	store.now = func() time.Time { return old }
	_, err := tracker.TrackPage(ctx, browser("8.8.8.8"), PageInput{Page: "/"})
	require.NoError(t, err)
	_, err = tracker.TrackEvent(ctx, browser("8.8.8.8"), EventInput{Event: "click"})
	require.NoError(t, err)

	store.now = func() time.Time { return now }
	_, err = tracker.TrackPage(ctx, browser("8.8.8.8"), PageInput{Page: "/"})
	require.NoError(t, err)

	deleted, err := store.PurgeOlderThan(ctx, 365)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted["page_views"])
	assert.Equal(t, int64(1), deleted["custom_events"])

	assert.Equal(t, int64(1), count(t, db, &PageView{}))
	assert.Equal(t, int64(1), count(t, db, &Visitor{}))
}

func TestStats30Days(t *testing.T) {
	tracker, _, db := setupTracker(t)
	ctx := context.Background()

	post := clposts.BlogPost{Title: "Article", Slug: "article", Content: "texte", Published: true}
	require.NoError(t, db.Create(&post).Error)

	ref := "https://news.ycombinator.com"
	withRef := browser("8.8.8.8")
	withRef.Referrer = &ref

	spent := 30
	_, err := tracker.TrackPage(ctx, withRef, PageInput{Page: "/", TimeSpent: &spent})
	require.NoError(t, err)
	_, err = tracker.TrackPage(ctx, browser("8.8.8.8"), PageInput{Page: "/blog"})
	require.NoError(t, err)
	_, err = tracker.TrackPage(ctx, browser("1.1.1.1"), PageInput{Page: "/"})
	require.NoError(t, err)
	_, err = tracker.TrackBlog(ctx, browser("1.1.1.1"), BlogInput{PostID: post.ID})
	require.NoError(t, err)

	stats, err := tracker.store.Stats30Days(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalPageViews)
	assert.Equal(t, int64(2), stats.UniqueVisitors)
	assert.Equal(t, int64(2), stats.NewVisitors)
	assert.Equal(t, float64(30), stats.AvgTimeSpent)
	assert.Equal(t, int64(1), stats.TotalBlogViews)
	require.NotEmpty(t, stats.TopPages)
	assert.Equal(t, PageStat{Path: "/", Views: 2}, stats.TopPages[0])
	require.Len(t, stats.TopReferrers, 1)
	assert.Equal(t, ref, stats.TopReferrers[0].Referrer)
	assert.Equal(t, []CountStat{{Label: clagent.DeviceDesktop, Count: 3}}, stats.Devices)
	require.NotEmpty(t, stats.TopPosts)
	assert.Equal(t, int64(1), stats.TopPosts[0].Views)
	assert.NotEmpty(t, stats.DailyStats)
}

func TestRealtimeWithoutRedis(t *testing.T) {
	tracker, _, _ := setupTracker(t)

	rt, err := tracker.Realtime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, false, rt["enabled"])
	assert.Equal(t, int64(0), rt["today_page_views"])
}

func TestIsHome(t *testing.T) {
	tracker := NewTracker(nil, nil, "/")
	assert.True(t, tracker.IsHome("/"))
	assert.True(t, tracker.IsHome(""))
	assert.True(t, tracker.IsHome("/?ref=x"))
	assert.True(t, tracker.IsHome("/#contact"))
	assert.False(t, tracker.IsHome("/blog"))

	fr := NewTracker(nil, nil, "/fr/")
	assert.True(t, fr.IsHome("/fr"))
	assert.True(t, fr.IsHome("/fr/"))
}

func TestScheduleRetention(t *testing.T) {
	tracker, _, _ := setupTracker(t)

	c := cron.New()
	require.NoError(t, tracker.store.ScheduleRetention(c, 30))
	assert.Len(t, c.Entries(), 1)
}
