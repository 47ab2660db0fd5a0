package clanalytics

import (
	"context"
	"littlefolio/internal/models/clmetrics"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RetentionSchedule: tous les jours à 2h du matin
const RetentionSchedule = "0 2 * * *"

// PurgeOlderThan supprime vues et événements plus anciens que days jours.
// Les visiteurs ne sont jamais supprimés.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (map[string]int64, error) {
	cutoff := s.now().AddDate(0, 0, -days)
	deleted := map[string]int64{}

	for _, model := range []interface{ TableName() string }{
		&PageView{}, &BlogView{}, &ProjectView{}, &CustomEvent{},
	} {
		res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(model)
		if res.Error != nil {
			return deleted, res.Error
		}
		deleted[model.TableName()] = res.RowsAffected
		clmetrics.RetentionDeletedTotal.WithLabelValues(model.TableName()).Add(float64(res.RowsAffected))
	}

	return deleted, nil
}

// ScheduleRetention ajoute la purge quotidienne au planificateur
func (s *Store) ScheduleRetention(c *cron.Cron, days int) error {
	_, err := c.AddFunc(RetentionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		deleted, err := s.PurgeOlderThan(ctx, days)
		if err != nil {
			log.Error().Err(err).Msg("Purge analytics échouée")
			return
		}
		ev := log.Info().Int("retention_days", days)
		for table, n := range deleted {
			ev = ev.Int64(table, n)
		}
		ev.Msg("Purge analytics terminée")
	})
	return err
}
