// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"feedesk/pkg/platform/strings"
)

const (
	LedgerYAML     = "yaml"
	LedgerPostgres = "postgres"
	LedgerMongo    = "mongo"
	LedgerMemory   = "memory"

	ArtifactsLocal      = "local"
	ArtifactsCloudinary = "cloudinary"

	ConverterSoffice   = "soffice"
	ConverterGotenberg = "gotenberg"
	ConverterFailover  = "failover"

	NotifierSMTP      = "smtp"
	NotifierZeptoMail = "zeptomail"
	NotifierLog       = "log"

	LockMemory = "memory"
	LockRedis  = "redis"
	LockNone   = "none"

	EventsLog      = "log"
	EventsKafka    = "kafka"
	EventsPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Receipt   Receipt
	Ledger    Ledger
	Artifacts Artifacts
	Converter Converter
	Notifier  Notifier
	Lock      Lock
	Redis     RedisConfig
	Events    Events
	Log       Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
}

type Receipt struct {
	TemplatePath string
	Prefix       string
	SuffixLen    int
}

type Ledger struct {
	Backend       string
	Path          string
	DatabaseURL   string
	MongoURL      string
	MongoDatabase string
}

type Artifacts struct {
	Backend    string
	OutputDir  string
	Cloudinary Cloudinary
}

type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type Converter struct {
	Backend      string
	SofficePath  string
	GotenbergURL string
}

type Notifier struct {
	Backend        string
	SMTPHost       string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	ZeptoAPIURL    string
	ZeptoAPIKey    string
}

type Lock struct {
	Backend string
	TTL     time.Duration
}

// RedisConfig configures the shared Redis client. An empty URL means Redis is not used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Events struct {
	Backend      string
	KafkaBrokers []string
	KafkaTopic   string
}

type Log struct {
	Level  string
	Format string
}

// LoadDotEnv seeds the environment from path. A missing file is not an error and
// variables already set are left alone.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from environment variables and validates it.
func FromEnv() (Config, error) {
	e := &env{}
	cfg := Config{
		Server: Server{
			Addr:               e.get("FEEDESK_ADDR", ":8000"),
			RequestTimeout:     e.getDuration("REQUEST_TIMEOUT", 2*time.Minute),
			CORSAllowedOrigins: strings.SplitList(e.get("CORS_ALLOWED_ORIGINS", "*")),
		},
		Receipt: Receipt{
			TemplatePath: e.get("TEMPLATE_PATH", "templates/registration_receipt.docx"),
			Prefix:       e.get("RECEIPT_PREFIX", "CTC"),
			SuffixLen:    e.getInt("RECEIPT_SUFFIX_LEN", 6),
		},
		Ledger: Ledger{
			Backend:       e.get("LEDGER_BACKEND", LedgerYAML),
			Path:          e.get("LEDGER_PATH", "master_data/registrations.yaml"),
			DatabaseURL:   e.get("DATABASE_URL", ""),
			MongoURL:      e.get("MONGO_URL", ""),
			MongoDatabase: e.get("MONGO_DATABASE", "feedesk"),
		},
		Artifacts: Artifacts{
			Backend:   e.get("ARTIFACT_BACKEND", ArtifactsLocal),
			OutputDir: e.get("OUTPUT_DIR", "students_registration_receipt"),
			Cloudinary: Cloudinary{
				CloudName: e.get("CLOUDINARY_CLOUD_NAME", ""),
				APIKey:    e.get("CLOUDINARY_API_KEY", ""),
				APISecret: e.get("CLOUDINARY_API_SECRET", ""),
				Folder:    e.get("CLOUDINARY_FOLDER", "receipts"),
			},
		},
		Converter: Converter{
			Backend:      e.get("CONVERTER_BACKEND", ConverterSoffice),
			SofficePath:  e.get("SOFFICE_PATH", "soffice"),
			GotenbergURL: e.get("GOTENBERG_URL", ""),
		},
		Notifier: Notifier{
			Backend:        e.get("NOTIFIER_BACKEND", NotifierSMTP),
			SMTPHost:       e.get("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:       e.getInt("SMTP_PORT", 465),
			SenderEmail:    e.get("SENDER_EMAIL", ""),
			SenderPassword: e.get("SENDER_PASSWORD", ""),
			ZeptoAPIURL:    e.get("ZEPTO_API_URL", "https://api.zeptomail.com/v1.1/email"),
			ZeptoAPIKey:    e.get("ZEPTO_API_KEY", ""),
		},
		Lock: Lock{
			Backend: e.get("LOCK_BACKEND", LockMemory),
			TTL:     e.getDuration("LOCK_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          e.get("REDIS_URL", ""),
			PoolSize:     e.getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Events: Events{
			Backend:      e.get("EVENTS_BACKEND", EventsLog),
			KafkaBrokers: strings.SplitList(e.get("KAFKA_BROKERS", "")),
			KafkaTopic:   e.get("KAFKA_TOPIC", "receipt-events"),
		},
		Log: Log{
			Level:  e.get("LOG_LEVEL", "info"),
			Format: e.get("LOG_FORMAT", "json"),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and settings missing for the chosen ones.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	oneOf := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown backend %q", name, value))
	}

	check(c.Server.Addr != "", "FEEDESK_ADDR is required")
	check(c.Receipt.TemplatePath != "", "TEMPLATE_PATH is required")

	oneOf("LEDGER_BACKEND", c.Ledger.Backend, LedgerYAML, LedgerPostgres, LedgerMongo, LedgerMemory)
	switch c.Ledger.Backend {
	case LedgerYAML:
		check(c.Ledger.Path != "", "LEDGER_PATH is required for the yaml ledger")
	case LedgerPostgres:
		check(c.Ledger.DatabaseURL != "", "DATABASE_URL is required for the postgres ledger")
	case LedgerMongo:
		check(c.Ledger.MongoURL != "", "MONGO_URL is required for the mongo ledger")
	}

	oneOf("ARTIFACT_BACKEND", c.Artifacts.Backend, ArtifactsLocal, ArtifactsCloudinary)
	switch c.Artifacts.Backend {
	case ArtifactsLocal:
		check(c.Artifacts.OutputDir != "", "OUTPUT_DIR is required for local artifacts")
	case ArtifactsCloudinary:
		cl := c.Artifacts.Cloudinary
		check(cl.CloudName != "" && cl.APIKey != "" && cl.APISecret != "",
			"CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for cloudinary artifacts")
	}

	oneOf("CONVERTER_BACKEND", c.Converter.Backend, ConverterSoffice, ConverterGotenberg, ConverterFailover)
	if c.Converter.Backend == ConverterGotenberg || c.Converter.Backend == ConverterFailover {
		check(c.Converter.GotenbergURL != "", "GOTENBERG_URL is required for the %s converter", c.Converter.Backend)
	}

	oneOf("NOTIFIER_BACKEND", c.Notifier.Backend, NotifierSMTP, NotifierZeptoMail, NotifierLog)
	switch c.Notifier.Backend {
	case NotifierSMTP:
		check(c.Notifier.SenderEmail != "" && c.Notifier.SenderPassword != "",
			"SENDER_EMAIL and SENDER_PASSWORD are required for the smtp notifier")
		check(c.Notifier.SMTPPort > 0 && c.Notifier.SMTPPort < 65536, "SMTP_PORT %d is out of range", c.Notifier.SMTPPort)
	case NotifierZeptoMail:
		check(c.Notifier.SenderEmail != "" && c.Notifier.ZeptoAPIKey != "",
			"SENDER_EMAIL and ZEPTO_API_KEY are required for the zeptomail notifier")
	}

	oneOf("LOCK_BACKEND", c.Lock.Backend, LockMemory, LockRedis, LockNone)
	if c.Lock.Backend == LockRedis {
		check(c.Redis.URL != "", "REDIS_URL is required for the redis lock")
		check(c.Lock.TTL > 0, "LOCK_TTL must be positive")
	}

	oneOf("EVENTS_BACKEND", c.Events.Backend, EventsLog, EventsKafka, EventsPostgres)
	switch c.Events.Backend {
	case EventsKafka:
		check(len(c.Events.KafkaBrokers) > 0, "KAFKA_BROKERS is required for kafka events")
		check(c.Events.KafkaTopic != "", "KAFKA_TOPIC is required for kafka events")
	case EventsPostgres:
		check(c.Ledger.DatabaseURL != "", "DATABASE_URL is required for postgres events")
	}

	return errors.Join(errs...)
}

// env reads variables and collects parse errors so all of them are reported at once.
type env struct {
	errs []error
}

func (e *env) get(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) getInt(key string, def int) int {
	raw := e.get(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return n
}

func (e *env) getDuration(key string, def time.Duration) time.Duration {
	raw := e.get(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return d
}
