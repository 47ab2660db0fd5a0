package clanalytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Stats30Days représente les statistiques sur 30 jours
type Stats30Days struct {
	TotalPageViews    int64          `json:"total_page_views"`
	UniqueVisitors    int64          `json:"unique_visitors"`
	NewVisitors       int64          `json:"new_visitors"`
	AvgTimeSpent      float64        `json:"avg_time_spent"`
	TotalBlogViews    int64          `json:"total_blog_views"`
	TotalProjectViews int64          `json:"total_project_views"`
	TotalEvents       int64          `json:"total_events"`
	TopPages          []PageStat     `json:"top_pages"`
	TopReferrers      []ReferrerStat `json:"top_referrers"`
	Devices           []CountStat    `json:"devices"`
	Browsers          []CountStat    `json:"browsers"`
	Countries         []CountStat    `json:"countries"`
	Events            []CountStat    `json:"events"`
	TopPosts          []EntityStat   `json:"top_posts"`
	TopProjects       []EntityStat   `json:"top_projects"`
	DailyStats        []DailyStat    `json:"daily_stats"`
}

type PageStat struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
}

type ReferrerStat struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

type CountStat struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type EntityStat struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Views int64  `json:"views"`
}

type DailyStat struct {
	Date           string `json:"date"`
	PageViews      int64  `json:"page_views"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// Stats30Days récupère toutes les statistiques des 30 derniers jours
func (s *Store) Stats30Days(ctx context.Context) (*Stats30Days, error) {
	since := s.now().AddDate(0, 0, -30)
	db := s.db.WithContext(ctx)
	stats := &Stats30Days{}

	pv := func() *gorm.DB { return db.Model(&PageView{}).Where("created_at >= ?", since) }

	if err := pv().Count(&stats.TotalPageViews).Error; err != nil {
		return nil, fmt.Errorf("comptage pages vues: %w", err)
	}

	if err := pv().Where("visitor_id IS NOT NULL").Distinct("visitor_id").Count(&stats.UniqueVisitors).Error; err != nil {
		return nil, fmt.Errorf("comptage visiteurs uniques: %w", err)
	}

	if err := db.Model(&Visitor{}).Where("created_at >= ?", since).Count(&stats.NewVisitors).Error; err != nil {
		return nil, fmt.Errorf("comptage nouveaux visiteurs: %w", err)
	}

	var avg struct{ Avg float64 }
	if err := pv().Select("COALESCE(AVG(time_spent), 0) as avg").Where("time_spent IS NOT NULL").Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("durée moyenne: %w", err)
	}
	stats.AvgTimeSpent = avg.Avg

	if err := db.Model(&BlogView{}).Where("created_at >= ?", since).Count(&stats.TotalBlogViews).Error; err != nil {
		return nil, fmt.Errorf("comptage vues articles: %w", err)
	}
	if err := db.Model(&ProjectView{}).Where("created_at >= ?", since).Count(&stats.TotalProjectViews).Error; err != nil {
		return nil, fmt.Errorf("comptage vues projets: %w", err)
	}
	if err := db.Model(&CustomEvent{}).Where("created_at >= ?", since).Count(&stats.TotalEvents).Error; err != nil {
		return nil, fmt.Errorf("comptage événements: %w", err)
	}

	stats.TopPages = []PageStat{}
	err := pv().
		Select("page as path, COUNT(*) as views").
		Group("page").
		Order("views DESC").
		Limit(10).
		Scan(&stats.TopPages).Error
	if err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}

	stats.TopReferrers = []ReferrerStat{}
	err = pv().
		Select("referrer, COUNT(*) as count").
		Where("referrer IS NOT NULL AND referrer <> ''").
		Group("referrer").
		Order("count DESC").
		Limit(10).
		Scan(&stats.TopReferrers).Error
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}

	for _, g := range []struct {
		column string
		model  any
		dst    *[]CountStat
	}{
		{"device", &PageView{}, &stats.Devices},
		{"browser", &PageView{}, &stats.Browsers},
		{"country", &PageView{}, &stats.Countries},
		{"kind", &CustomEvent{}, &stats.Events},
	} {
		*g.dst = []CountStat{}
		err := db.Model(g.model).
			Select(g.column+" as label, COUNT(*) as count").
			Where("created_at >= ? AND "+g.column+" <> ''", since).
			Group(g.column).
			Order("count DESC").
			Limit(10).
			Scan(g.dst).Error
		if err != nil {
			return nil, fmt.Errorf("répartition %s: %w", g.column, err)
		}
	}

	stats.TopPosts = []EntityStat{}
	if err := s.content.WithContext(ctx).Table("blog_posts").
		Select("id, title, views").Order("views DESC").Limit(5).
		Scan(&stats.TopPosts).Error; err != nil {
		return nil, fmt.Errorf("top articles: %w", err)
	}

	stats.TopProjects = []EntityStat{}
	if err := s.content.WithContext(ctx).Table("projects").
		Select("id, title, views").Order("views DESC").Limit(5).
		Scan(&stats.TopProjects).Error; err != nil {
		return nil, fmt.Errorf("top projets: %w", err)
	}

	daily, err := s.dailyStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("stats journalières: %w", err)
	}
	stats.DailyStats = daily

	return stats, nil
}

// dailyStats récupère les statistiques jour par jour, triées par date
func (s *Store) dailyStats(ctx context.Context, since time.Time) ([]DailyStat, error) {
	var rows []DailyStat
	err := s.db.WithContext(ctx).Model(&PageView{}).
		Select("DATE(created_at) as date, COUNT(*) as page_views, COUNT(DISTINCT visitor_id) as unique_visitors").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	if rows == nil {
		rows = []DailyStat{}
	}
	return rows, nil
}

// Realtime lit les compteurs du jour dans redis, tout à zéro si redis est désactivé
func (t *Tracker) Realtime(ctx context.Context) (map[string]any, error) {
	counters, unique, err := t.redis.Daily(ctx, t.store.now())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":               t.redis.Enabled(),
		"today_page_views":      counters["page"],
		"today_blog_views":      counters["blog"],
		"today_project_views":   counters["project"],
		"today_events":          counters["event"],
		"today_unique_visitors": unique,
	}, nil
}
