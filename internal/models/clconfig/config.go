package clconfig

import (
	"errors"
	"fmt"
	"log/syslog"
	"os"
	"strings"
	"time"

	"github.com/andskur/argon2-hashing"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	EnvJWTSecret    = "JWT_SECRET"
	EnvPublicAPIURL = "NEXT_PUBLIC_API_URL"

	MinSecretLength = 32
)

var ErrMissingSecret = errors.New("le secret JWT est obligatoire (auth.jwtsecret ou JWT_SECRET)")

type Config struct {
	TrustedProxies  []string        `yaml:"trustedproxies"`
	TrustedPlatform string          `yaml:"trustedplatform"`
	Database        DatabaseConfig  `yaml:"database"`
	StaticPath      string          `yaml:"staticpath"`
	User            UserConfig      `yaml:"user"`
	Auth            AuthConfig      `yaml:"auth"`
	Site            SiteConfig      `yaml:"site"`
	Production      bool            `yaml:"production"`
	Listen          ListenConfig    `yaml:"listen"`
	Logger          LoggerConfig    `yaml:"logger"`
	Analytics       AnalyticsConfig `yaml:"analytics"`
}

type SiteConfig struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	PublicAPIURL   string   `yaml:"publicapiurl"`
	AllowedOrigins []string `yaml:"allowedorigins"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwtsecret"`
	SessionTTL time.Duration `yaml:"sessionttl"`
	Captcha    bool          `yaml:"captcha"`
}

type AnalyticsConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Db            string      `yaml:"db"`
	Path          string      `yaml:"path"`
	Dsn           string      `yaml:"dsn"`
	Redis         RedisConfig `yaml:"redis"`
	Geo           GeoConfig   `yaml:"geo"`
	HomePath      string      `yaml:"homepath"`
	RetentionDays int         `yaml:"retentiondays"`
}

type GeoConfig struct {
	// maxmind, ipapi ou none
	Provider    string        `yaml:"provider"`
	Accuracy    string        `yaml:"accuracy"`
	MaxmindPath string        `yaml:"maxmindpath"`
	IPAPIURL    string        `yaml:"ipapiurl"`
	CacheTTL    time.Duration `yaml:"cachettl"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
	Metrics string `yaml:"metrics"`
}

type UserConfig struct {
	Login string `yaml:"login"`
	Email string `yaml:"email"`
	Pass  string `yaml:"pass"`
	Hash  string `yaml:"hash"`
}

type DatabaseConfig struct {
	Redis         RedisConfig   `yaml:"redis"`
	Db            string        `yaml:"db"`
	Path          string        `yaml:"path"`
	Dsn           string        `yaml:"dsn"`
	SlowThreshold time.Duration `yaml:"slowthreshold"`
}

func CreateExampleConfig(filename string) (string, error) {
	example := &Config{
		Database: DatabaseConfig{
			Db:   "sqlite",
			Path: "./littlefolio.db",
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			HomePath:      "/",
			RetentionDays: 365,
			Geo: GeoConfig{
				Provider: "ipapi",
				Accuracy: "high",
				CacheTTL: 24 * time.Hour,
			},
		},
		User: UserConfig{
			Login: "admin",
			Email: "admin@example.com",
			Pass:  "admin1234",
		},
		Auth: AuthConfig{
			SessionTTL: 7 * 24 * time.Hour,
		},
		Site: SiteConfig{
			Name:         "Mon Portfolio",
			Description:  "Portfolio qui utilise littlefolio",
			PublicAPIURL: "http://localhost:8080",
		},
		StaticPath: "./static",
		Production: false,
		Logger: LoggerConfig{
			Level: "info",
		},
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
			Metrics: "127.0.0.1:8090",
		},
	}

	if filename == "/etc/" {
		example.Listen.Website = "127.0.0.1:8000"
		example.Production = true
		example.Database.Path = "/var/lib/littlefolio/sqlite.db"
		example.StaticPath = "/var/lib/littlefolio/static"
		example.Logger.File = LoggerFileConfig{
			Enable:     true,
			Path:       "/var/log/littlefolio/littlefolio.log",
			MaxSize:    100,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   true,
		}
		filename = "/etc/littlefolio/config.yaml"
	}

	return filename, WriteConfigYaml(filename, example)
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0600)
}

// Charger la configuration YAML
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %w", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %w", err)
	}

	return &config, nil
}

// LoadEnvFile charge un fichier .env s'il existe, sans écraser l'environnement
func LoadEnvFile(filename string) error {
	if filename == "" {
		filename = ".env"
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(filename)
}

// ApplyEnv surcharge la configuration avec les variables d'environnement
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvJWTSecret)); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(getenv(EnvPublicAPIURL)); v != "" {
		c.Site.PublicAPIURL = v
	}
}

// ApplyDefaults complète les valeurs absentes
func (c *Config) ApplyDefaults() {
	if c.Listen.Website == "" {
		c.Listen.Website = "localhost:8080"
	}
	if strings.HasPrefix(c.Listen.Website, ":") {
		c.Listen.Website = "localhost" + c.Listen.Website
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if c.Database.SlowThreshold <= 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}
	if c.Analytics.HomePath == "" {
		c.Analytics.HomePath = "/"
	}
	if c.Analytics.RetentionDays <= 0 {
		c.Analytics.RetentionDays = 365
	}
	if c.Analytics.Geo.Provider == "" {
		c.Analytics.Geo.Provider = "none"
	}
	if c.Analytics.Geo.Accuracy == "" {
		c.Analytics.Geo.Accuracy = "high"
	}
	if c.Analytics.Geo.CacheTTL <= 0 {
		c.Analytics.Geo.CacheTTL = 24 * time.Hour
	}
}

// Validate vérifie la configuration, le serveur ne démarre pas si elle est invalide
func (c *Config) Validate() error {
	switch {
	case c.Database.Db == "":
		return fmt.Errorf("database.db ne peut pas être vide")
	case c.Database.Db != "sqlite" && c.Database.Db != "mysql":
		return fmt.Errorf("le type de database doit etre sqlite ou mysql")
	case c.Database.Db == "sqlite" && c.Database.Path == "":
		return fmt.Errorf("database.path ne peut pas être vide")
	case c.Database.Db == "mysql" && c.Database.Dsn == "":
		return fmt.Errorf("database.dsn ne peut pas être vide")
	}

	if c.Auth.JWTSecret == "" {
		return ErrMissingSecret
	}
	if len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("le secret JWT doit contenir au moins %d caractères", MinSecretLength)
	}

	switch c.Analytics.Geo.Provider {
	case "none", "ipapi":
	case "maxmind":
		if c.Analytics.Geo.MaxmindPath == "" {
			return fmt.Errorf("analytics.geo.maxmindpath ne peut pas être vide avec le provider maxmind")
		}
	default:
		return fmt.Errorf("provider de géolocalisation inconnu: %s", c.Analytics.Geo.Provider)
	}

	if c.Analytics.Geo.Accuracy != "high" && c.Analytics.Geo.Accuracy != "low" {
		return fmt.Errorf("analytics.geo.accuracy doit etre high ou low")
	}

	if c.User.Login == "" {
		return fmt.Errorf("user.login ne peut pas être vide")
	}
	if c.User.Pass == "" && c.User.Hash == "" {
		return fmt.Errorf("user.pass ou user.hash doit être renseigné")
	}

	return nil
}

// HashAdminPassword remplace user.pass par son hash argon2 et réécrit le fichier
func (c *Config) HashAdminPassword(configFile string) error {
	if c.User.Pass == "" {
		return nil
	}
	if len(c.User.Pass) < 8 {
		return fmt.Errorf("le mot de passe doit contenir au moins 8 caractères")
	}

	hash, err := argon2.GenerateFromPassword([]byte(c.User.Pass), argon2.DefaultParams)
	if err != nil {
		return err
	}
	c.User.Hash = string(hash)
	c.User.Pass = ""

	if configFile == "" {
		return nil
	}

	// le secret venant de l'environnement ne doit pas finir dans le fichier
	onDisk, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	onDisk.User.Hash = c.User.Hash
	onDisk.User.Pass = ""
	return WriteConfigYaml(configFile, onDisk)
}

// Load enchaîne lecture du fichier, environnement, valeurs par défaut et validation
func Load(configFile string, getenv func(string) string) (*Config, error) {
	conf, err := LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("erreur chargement config: %w", err)
	}

	conf.ApplyEnv(getenv)
	conf.ApplyDefaults()

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if err := conf.HashAdminPassword(configFile); err != nil {
		return nil, err
	}

	return conf, nil
}

func CreateExample(shouldCreateExample bool, configFile string) {
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = "littlefolio.yaml"
	}
	filename, err := CreateExampleConfig(filename)
	if err != nil {
		return fmt.Errorf("erreur création exemple: %w", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Println("⚠️  user.pass sera automatiquement hash en argon2 dans user.hash au premier lancement")
	fmt.Printf("⚠️  Renseigner auth.jwtsecret ou la variable %s (%d caractères minimum)\n", EnvJWTSecret, MinSecretLength)
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("Littlefolio version %s", version)

	logPrintf("Mode Production %v", config.Production)
	logPrintf("Administrateur login %s", config.User.Login)
	logPrintf("Durée des sessions admin %s", config.Auth.SessionTTL)
	if config.Site.PublicAPIURL != "" {
		logPrintf("URL publique de l'API %s", config.Site.PublicAPIURL)
	}

	logPrintf("Database")
	if config.Database.Db == "sqlite" {
		logPrintf("  • Type sqlite")
		logPrintf("  • Path %s", config.Database.Path)
	}
	if config.Database.Db == "mysql" {
		logPrintf("  • Type mysql")
	}

	if config.Analytics.Enabled {
		logPrintf("  • Analytics activé")
		if config.Analytics.Db == "sqlite" && config.Analytics.Path != "" {
			logPrintf("  	• Sqlite path %s", config.Analytics.Path)
		} else if config.Analytics.Db == "mysql" && config.Analytics.Dsn != "" {
			logPrintf("  	• Base mysql dédiée")
		} else {
			logPrintf("  	• La base est la même que la principale")
		}
		if config.Analytics.Redis.Addr != "" {
			logPrintf("  	• Redis addr %s", config.Analytics.Redis.Addr)
		}
		logPrintf("  	• Géolocalisation %s (%s)", config.Analytics.Geo.Provider, config.Analytics.Geo.Accuracy)
		logPrintf("  	• Rétention %d jours", config.Analytics.RetentionDays)
	} else {
		logPrintf("  • Analytics désactivé")
	}

	logPrintf("Logger en level %s", config.Logger.Level)
	if config.Logger.File.Enable {
		logPrintf("  Log en fichier activé")
		logPrintf("  • Path %s", config.Logger.File.Path)
		logPrintf("  • Max size %d", config.Logger.File.MaxSize)
		logPrintf("  • Max age %d", config.Logger.File.MaxAge)
		logPrintf("  • Max backup %d", config.Logger.File.MaxBackups)
		logPrintf("  • Compression %v", config.Logger.File.Compress)
	} else {
		logPrintf("  Log en fichier désactivé")
	}
	if config.Logger.Syslog.Enable {
		logPrintf("  Log en syslog activé")
		logPrintf("  • Protocol %s", config.Logger.Syslog.Protocol)
		logPrintf("  • Address %s", config.Logger.Syslog.Address)
		logPrintf("  • Tag %s", config.Logger.Syslog.Tag)
	} else {
		logPrintf("  Log en syslog désactivé")
	}
}

func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}
