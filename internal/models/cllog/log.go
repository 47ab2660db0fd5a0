package cllog

import (
	"context"
	"fmt"
	"io"
	"littlefolio/internal/models/clconfig"
	"log/syslog"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// syslogSink est la partie de *syslog.Writer utilisée par SyslogLevelWriter
type syslogSink interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Crit(m string) error
}

// SyslogLevelWriter route chaque ligne zerolog vers la priorité syslog correspondante
type SyslogLevelWriter struct {
	Writer syslogSink
}

// InitLogger configure le logger global et le retourne
func InitLogger(cfg clconfig.LoggerConfig, production bool) zerolog.Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return path.Join(path.Base(path.Dir(file)), path.Base(file)) + ":" + strconv.Itoa(line)
	}
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	writers, err := buildWriters(cfg, production, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("impossible d'initialiser le logger")
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).
		With().
		Timestamp().
		Caller().
		Logger()

	env := "developpement"
	if production {
		env = "production"
	}
	log.Info().
		Str("environment", env).
		Str("level", cfg.Level).
		Bool("log_to_file", cfg.File.Enable).
		Bool("log_to_syslog", cfg.Syslog.Enable).
		Msg("Logger initialisé")

	return log.Logger
}

func buildWriters(cfg clconfig.LoggerConfig, production bool, stdout io.Writer) ([]io.Writer, error) {
	var writers []io.Writer

	// console lisible en développement, JSON brut sinon
	if !production {
		writers = append(writers, zerolog.ConsoleWriter{Out: stdout, TimeFormat: "15:04:05"})
	}

	if cfg.File.Enable {
		w, err := setupFileWriter(cfg.File)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	if cfg.Syslog.Enable {
		w, err := setupSyslogWriter(cfg.Syslog)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		writers = append(writers, stdout)
	}
	return writers, nil
}

// Write implémente io.Writer
func (w *SyslogLevelWriter) Write(p []byte) (int, error) {
	msg := string(p)

	switch extractLevel(p) {
	case "debug", "trace":
		return len(p), w.Writer.Debug(msg)
	case "warn", "warning":
		return len(p), w.Writer.Warning(msg)
	case "error":
		return len(p), w.Writer.Err(msg)
	case "fatal", "panic":
		return len(p), w.Writer.Crit(msg)
	default:
		return len(p), w.Writer.Info(msg)
	}
}

// extractLevel lit le champ level d'une ligne JSON zerolog
func extractLevel(p []byte) string {
	var line struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(p, &line); err != nil {
		return ""
	}
	return line.Level
}

// ParseLevel retourne info pour une valeur vide ou inconnue
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

func setupFileWriter(cfg clconfig.LoggerFileConfig) (io.Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("logger.file.path ne peut pas être vide")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, err
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}

func setupSyslogWriter(cfg clconfig.LoggerSyslogConfig) (io.Writer, error) {
	tag := cfg.Tag
	if tag == "" {
		tag = "littlefolio"
	}
	priority := cfg.Priority
	if priority == 0 {
		priority = syslog.LOG_INFO | syslog.LOG_LOCAL0
	}

	var (
		writer *syslog.Writer
		err    error
	)
	if cfg.Protocol == "" || cfg.Address == "" {
		writer, err = syslog.New(priority, tag)
	} else {
		writer, err = syslog.Dial(cfg.Protocol, cfg.Address, priority, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("connexion syslog impossible: %w", err)
	}

	return &SyslogLevelWriter{Writer: writer}, nil
}

type requestIDKey struct{}

// WithRequestID attache l'identifiant de requête au contexte
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID retourne "" si le contexte n'en porte pas
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
