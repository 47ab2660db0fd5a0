package clfolio

import (
	"context"
	"errors"
	"fmt"
	"littlefolio/internal/models/clanalytics"
	"littlefolio/internal/models/clauth"
	"littlefolio/internal/models/clcaptchas"
	"littlefolio/internal/models/clconfig"
	"littlefolio/internal/models/clgeo"
	"littlefolio/internal/models/clmarkdown"
	"littlefolio/internal/models/clposts"
	"littlefolio/internal/models/clprojects"
	"littlefolio/internal/models/clredis"
	"littlefolio/internal/models/gormzerologger"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const geoTimeout = 3 * time.Second

// Littlefolio regroupe les dépendances construites au démarrage.
// Il est passé explicitement aux handlers, il n'y a pas d'instance globale.
// AnalyticsRedis vaut Redis sauf si analytics.redis.addr est configuré.
type Littlefolio struct {
	Configuration  *clconfig.Config
	Db             *gorm.DB
	AnalyticsDb    *gorm.DB
	Redis          *clredis.Client
	AnalyticsRedis *clredis.Client
	Captcha        *clcaptchas.Captchas
	Markdown       *clmarkdown.Renderer
	Auth           *clauth.Service
	Posts          *clposts.Repository
	Projects       *clprojects.Repository
	Analytics      *clanalytics.Store
	Tracker        *clanalytics.Tracker
	Version        string
	BuildID        string

	geo clgeo.Provider
}

func New(ctx context.Context, config *clconfig.Config, logger zerolog.Logger, version, buildid string) (*Littlefolio, error) {
	lf := &Littlefolio{
		Configuration: config,
		Version:       version,
		BuildID:       buildid,
		Markdown:      clmarkdown.New(),
		Redis:         clredis.New(config.Database.Redis),
	}

	if err := lf.Redis.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connexion redis: %w", err)
	}
	lf.Captcha = clcaptchas.New(lf.Redis)

	if err := lf.initDatabase(logger); err != nil {
		return nil, err
	}
	if err := lf.initAuth(ctx); err != nil {
		return nil, err
	}

	lf.Posts = clposts.NewRepository(lf.Db)
	lf.Projects = clprojects.NewRepository(lf.Db)

	if config.Analytics.Enabled {
		if err := lf.initAnalytics(ctx, logger); err != nil {
			lf.Close()
			return nil, err
		}
	}

	return lf, nil
}

// OpenDatabase ouvre une base sqlite ou mysql avec le logger gorm zerolog
func OpenDatabase(kind, path, dsn string, gormLogger *gormzerologger.GormZerologger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch kind {
	case "sqlite":
		dialector = sqlite.Open(path)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("le type de database doit etre sqlite ou mysql")
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connexion base de données: %w", err)
	}

	// sqlite ne supporte qu'un écrivain à la fois
	if kind == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func (lf *Littlefolio) gormLogger(logger zerolog.Logger) *gormzerologger.GormZerologger {
	level := lf.Configuration.Logger.Level
	if level == "" && !lf.Configuration.Production {
		level = "debug"
	}
	return gormzerologger.New(logger, level, lf.Configuration.Database.SlowThreshold)
}

func (lf *Littlefolio) initDatabase(logger zerolog.Logger) error {
	cfg := lf.Configuration.Database
	db, err := OpenDatabase(cfg.Db, cfg.Path, cfg.Dsn, lf.gormLogger(logger))
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(&clposts.BlogPost{}, &clprojects.Project{}); err != nil {
		return fmt.Errorf("erreur migration: %w", err)
	}
	if err := clauth.Migrate(db); err != nil {
		return fmt.Errorf("erreur migration: %w", err)
	}

	lf.Db = db
	return nil
}

func (lf *Littlefolio) initAuth(ctx context.Context) error {
	cfg := lf.Configuration
	manager, err := clauth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	lf.Auth = clauth.NewService(lf.Db, manager)

	if _, err := lf.Auth.SeedAdmin(ctx, cfg.User.Login, cfg.User.Email, cfg.User.Hash); err != nil {
		return err
	}
	return nil
}

// la base analytics est optionnelle, par défaut les tables vont dans la base principale
func (lf *Littlefolio) initAnalytics(ctx context.Context, logger zerolog.Logger) error {
	cfg := lf.Configuration.Analytics

	lf.AnalyticsDb = lf.Db
	if cfg.Db != "" {
		db, err := OpenDatabase(cfg.Db, cfg.Path, cfg.Dsn, lf.gormLogger(logger))
		if err != nil {
			return fmt.Errorf("base analytics: %w", err)
		}
		lf.AnalyticsDb = db
	}

	if err := clanalytics.Migrate(lf.AnalyticsDb); err != nil {
		return fmt.Errorf("erreur migration analytics: %w", err)
	}

	// les compteurs temps réel utilisent leur propre redis si configuré
	lf.AnalyticsRedis = lf.Redis
	if cfg.Redis.Addr != "" {
		lf.AnalyticsRedis = clredis.New(cfg.Redis)
		if err := lf.AnalyticsRedis.Ping(ctx); err != nil {
			return fmt.Errorf("connexion redis analytics: %w", err)
		}
	}

	provider, err := clgeo.NewProvider(cfg.Geo, lf.AnalyticsRedis)
	if err != nil {
		return err
	}
	lf.geo = provider
	log.Info().Str("provider", provider.Name()).Str("accuracy", cfg.Geo.Accuracy).Msg("Géolocalisation")

	lf.Analytics = clanalytics.NewStore(lf.AnalyticsDb, lf.Db, clgeo.NewEnricher(provider, geoTimeout), cfg.Geo.Accuracy)
	lf.Tracker = clanalytics.NewTracker(lf.Analytics, lf.AnalyticsRedis, cfg.HomePath)
	return nil
}

// Ping vérifie les bases, utilisé par /healthz
func (lf *Littlefolio) Ping(ctx context.Context) error {
	for _, db := range []*gorm.DB{lf.Db, lf.AnalyticsDb} {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (lf *Littlefolio) Close() error {
	var errs []error
	if closer, ok := lf.geo.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, lf.Redis.Close())
	if lf.AnalyticsRedis != lf.Redis {
		errs = append(errs, lf.AnalyticsRedis.Close())
	}
	dbs := []*gorm.DB{lf.Db}
	if lf.AnalyticsDb != nil && lf.AnalyticsDb != lf.Db {
		dbs = append(dbs, lf.AnalyticsDb)
	}
	for _, db := range dbs {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
