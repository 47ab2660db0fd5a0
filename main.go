package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	handlers_admin "littlefolio/internal/handlers/admin"
	handlers_analytics "littlefolio/internal/handlers/analytics"
	handlers_blog "littlefolio/internal/handlers/blog"
	handlers_projects "littlefolio/internal/handlers/projects"
	handlers_rss "littlefolio/internal/handlers/rss"
	handlers_static "littlefolio/internal/handlers/static"
	handlers_track "littlefolio/internal/handlers/track"
	"littlefolio/internal/clmiddleware"
	"littlefolio/internal/models/clanalytics"
	"littlefolio/internal/models/clconfig"
	"littlefolio/internal/models/clfolio"
	"littlefolio/internal/models/cllog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const VERSION string = "0.6.0"

var BuildID string

//go:embed ressources/js
var staticFS embed.FS

const (
	loginPerMinute = 5
	trackPerMinute = 120
)

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return *config, true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func initConfiguration() *clconfig.Config {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  littlefolio -config littlefolio.yaml")
		fmt.Println("  littlefolio -example  (pour créer un fichier exemple)")
		fmt.Println("  littlefolio -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		println(VERSION)
		os.Exit(0)
	}

	clconfig.CreateExample(shouldCreateExample, configFile)

	if err := clconfig.LoadEnvFile(""); err != nil {
		fmt.Printf("❌ fichier .env: %v\n", err)
		os.Exit(1)
	}

	conf, err := clconfig.Load(configFile, os.Getenv)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return conf
}

func newServer(conf *clconfig.Config) *gin.Engine {
	if conf.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	if conf.TrustedProxies != nil {
		r.SetTrustedProxies(conf.TrustedProxies)
	}
	if conf.TrustedPlatform != "" {
		switch conf.TrustedPlatform {
		case "cloudflare":
			r.TrustedPlatform = gin.PlatformCloudflare
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = conf.TrustedPlatform
		}
	}

	return r
}

func setRoutes(r *gin.Engine, lf *clfolio.Littlefolio) error {
	conf := lf.Configuration

	static, err := handlers_static.NewStaticHandler(staticFS, conf.Site.PublicAPIURL, lf.Ping)
	if err != nil {
		return err
	}
	admin := handlers_admin.NewAdminHandler(lf)
	blog := handlers_blog.NewBlogHandler(lf.Posts, lf.Markdown)
	projects := handlers_projects.NewProjectsHandler(lf.Projects)
	track := handlers_track.NewTrackHandler(lf.Tracker)

	loginLimiter := clmiddleware.NewLimiter(loginPerMinute)
	trackLimiter := clmiddleware.NewLimiter(trackPerMinute)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route non trouvée"})
	})

	// Route statiques
	r.Static("/static/", conf.StaticPath)
	r.GET("/files/js/tracker.js", static.TrackerJS)
	r.GET("/healthz", static.Healthz)
	r.GET("/rss.xml", handlers_rss.RssHandler(lf))

	api := r.Group("/api")
	{
		api.GET("/config", static.Config)
		api.GET("/captcha", admin.Captcha)
		api.GET("/blog", blog.List)
		api.GET("/blog/:slug", blog.Get)
		api.GET("/projects", projects.List)
	}

	tracking := api.Group("/track", trackLimiter)
	{
		tracking.POST("/page", track.Page)
		tracking.POST("/blog", track.Blog)
		tracking.POST("/project", track.Project)
		tracking.POST("/event", track.Event)
	}

	// Routes d'authentification
	api.POST("/admin/auth/login", loginLimiter, admin.Login)
	api.POST("/admin/auth/logout", admin.Logout)

	// Routes d'administration protégées
	private := api.Group("/admin")
	private.Use(clmiddleware.AdminRequired(lf.Auth))
	{
		private.GET("/auth/verify", admin.Verify)
		private.GET("/dashboard", admin.Dashboard)
		private.POST("/uploads/image", admin.UploadImage)

		private.GET("/projects", admin.ListProjects)
		private.POST("/projects", admin.CreateProject)
		private.PUT("/projects/:id", admin.UpdateProject)
		private.DELETE("/projects/:id", admin.DeleteProject)

		private.GET("/posts", admin.ListPosts)
		private.GET("/posts/:id", admin.GetPost)
		private.POST("/posts", admin.CreatePost)
		private.PUT("/posts/:id", admin.UpdatePost)
		private.DELETE("/posts/:id", admin.DeletePost)
	}

	if lf.Tracker != nil {
		analytics := handlers_analytics.NewAnalyticsHandler(lf.Analytics, lf.Tracker)
		private.GET("/analytics/stats", analytics.GetStats30Days)
		private.GET("/analytics/realtime", analytics.GetRealtimeStats)
	}

	return nil
}

// scheduleJobs: purge analytics et sessions admin expirées, chaque nuit
func scheduleJobs(lf *clfolio.Littlefolio) (*cron.Cron, error) {
	jobs := cron.New()

	if lf.Analytics != nil {
		if err := lf.Analytics.ScheduleRetention(jobs, lf.Configuration.Analytics.RetentionDays); err != nil {
			return nil, err
		}
	}

	_, err := jobs.AddFunc(clanalytics.RetentionSchedule, func() {
		n, err := lf.Auth.PurgeExpired(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("purge sessions admin")
			return
		}
		log.Info().Int64("deleted", n).Msg("Sessions admin expirées supprimées")
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func startMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.Info().Msgf("Metrics disponible sur http://%s/metrics", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("serveur metrics")
		}
	}()
	return srv
}

// startServer bloque jusqu'à SIGINT/SIGTERM puis arrête proprement les serveurs
func startServer(r *gin.Engine, lf *clfolio.Littlefolio) {
	conf := lf.Configuration
	var metrics *http.Server
	if conf.Listen.Metrics != "" {
		metrics = startMetrics(conf.Listen.Metrics)
	}

	srv := &http.Server{
		Addr:              conf.Listen.Website,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("Website démarré sur http://%s", conf.Listen.Website)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serveur http")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Arrêt du serveur")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("arrêt serveur http")
	}
	if metrics != nil {
		metrics.Shutdown(ctx)
	}
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	conf := initConfiguration()
	logger := cllog.InitLogger(conf.Logger, conf.Production)
	clconfig.DisplayConfiguration(conf, VERSION)

	if err := clmiddleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("validateurs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	lf, err := clfolio.New(ctx, conf, logger, VERSION, BuildID)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation")
	}
	defer lf.Close()

	jobs, err := scheduleJobs(lf)
	if err != nil {
		log.Fatal().Err(err).Msg("planification des tâches")
	}
	jobs.Start()
	defer jobs.Stop()

	r := newServer(conf)
	clmiddleware.InitMiddleware(r, conf.Site.AllowedOrigins, conf.Production)
	if err := setRoutes(r, lf); err != nil {
		log.Fatal().Err(err).Msg("routes")
	}

	startServer(r, lf)
}
