package clanalytics

import (
	"context"
	"errors"
	"fmt"
	"littlefolio/internal/models/clclient"
	"littlefolio/internal/models/clgeo"
	"littlefolio/internal/models/clmetrics"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound       = errors.New("élément non trouvé")
	ErrInvalidPayload = errors.New("données d'événement invalides")
)

// Store regroupe les écritures analytics.
// db porte les tables analytics, content les articles et projets (souvent la même base).
type Store struct {
	db       *gorm.DB
	content  *gorm.DB
	geo      *clgeo.Enricher
	accuracy string
	now      func() time.Time
}

func NewStore(db, content *gorm.DB, geo *clgeo.Enricher, accuracy string) *Store {
	if content == nil {
		content = db
	}
	if geo == nil {
		geo = clgeo.NewEnricher(nil, 0)
	}
	if accuracy == "" {
		accuracy = clgeo.AccuracyHigh
	}
	return &Store{
		db:       db,
		content:  content,
		geo:      geo,
		accuracy: accuracy,
		now:      time.Now,
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// FindVisitor retourne nil, nil si l'IP n'a jamais été vue
func (s *Store) FindVisitor(ctx context.Context, ip string) (*Visitor, error) {
	var v Visitor
	err := s.db.WithContext(ctx).Where("ip_address = ?", ip).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recherche visiteur: %w", err)
	}
	return &v, nil
}

// ResolveVisitor crée ou met à jour le visiteur de cette IP.
// La géolocalisation n'est appelée qu'à la première visite.
func (s *Store) ResolveVisitor(ctx context.Context, info clclient.Info) (*Visitor, error) {
	now := s.now()

	existing, err := s.FindVisitor(ctx, info.IP)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		err := s.db.WithContext(ctx).Model(&Visitor{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"visit_count": gorm.Expr("visit_count + 1"),
				"last_visit":  now,
				"user_agent":  info.UserAgent,
			}).Error
		if err != nil {
			return nil, fmt.Errorf("mise à jour visiteur: %w", err)
		}
		return s.reloadVisitor(ctx, info.IP)
	}

	loc := s.geo.Locate(ctx, info.IP, s.accuracy)

	visitor := Visitor{
		IPAddress:  info.IP,
		VisitCount: 1,
		LastVisit:  now,
		UserAgent:  info.UserAgent,
		Country:    loc.Country,
		Region:     loc.Region,
		City:       loc.City,
		CreatedAt:  now,
	}

	// une requête concurrente a pu créer la ligne entre temps: on incrémente au lieu d'échouer
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"visit_count": gorm.Expr("visit_count + 1"),
			"last_visit":  now,
			"user_agent":  info.UserAgent,
		}),
	}).Create(&visitor)
	if res.Error != nil {
		return nil, fmt.Errorf("création visiteur: %w", res.Error)
	}

	v, err := s.reloadVisitor(ctx, info.IP)
	if err == nil && v.VisitCount == 1 {
		clmetrics.VisitorsCreatedTotal.Inc()
	}
	return v, err
}

// recordDuration fixe la durée de la dernière vue du visiteur sur cette page.
// La durée envoyée est cumulée depuis le chargement, elle remplace la précédente.
// Retourne false si aucune vue récente ne correspond.
func (s *Store) recordDuration(ctx context.Context, visitorID uint, page string, seconds int) (bool, error) {
	var view PageView
	err := s.db.WithContext(ctx).
		Where("visitor_id = ? AND page = ? AND created_at >= ?",
			visitorID, page, s.now().Add(-DurationWindow)).
		Order("id DESC").
		Take(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recherche page vue: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&PageView{}).
		Where("id = ?", view.ID).
		UpdateColumn("time_spent", seconds).Error
	if err != nil {
		return false, fmt.Errorf("durée page vue: %w", err)
	}
	return true, nil
}

func (s *Store) reloadVisitor(ctx context.Context, ip string) (*Visitor, error) {
	var v Visitor
	if err := s.db.WithContext(ctx).Where("ip_address = ?", ip).Take(&v).Error; err != nil {
		return nil, fmt.Errorf("lecture visiteur: %w", err)
	}
	return &v, nil
}

// incrementAndRecord incrémente views sur la table de contenu puis écrit la vue.
// Dans une seule transaction quand contenu et analytics partagent la base.
func (s *Store) incrementAndRecord(ctx context.Context, table string, id uint, record any) error {
	increment := func(tx *gorm.DB) error {
		res := tx.Table(table).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}

	if s.content == s.db {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := increment(tx); err != nil {
				return err
			}
			return tx.Create(record).Error
		})
	}

	if err := increment(s.content.WithContext(ctx)); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(record).Error
}
