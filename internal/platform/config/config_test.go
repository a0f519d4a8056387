package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SENDER_EMAIL", "fees@example.com")
	t.Setenv("SENDER_PASSWORD", "app-password")
}

func TestFromEnvDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "templates/registration_receipt.docx", cfg.Receipt.TemplatePath)
	assert.Equal(t, "CTC", cfg.Receipt.Prefix)
	assert.Equal(t, 6, cfg.Receipt.SuffixLen)
	assert.Equal(t, LedgerYAML, cfg.Ledger.Backend)
	assert.Equal(t, "master_data/registrations.yaml", cfg.Ledger.Path)
	assert.Equal(t, "students_registration_receipt", cfg.Artifacts.OutputDir)
	assert.Equal(t, ConverterSoffice, cfg.Converter.Backend)
	assert.Equal(t, "smtp.gmail.com", cfg.Notifier.SMTPHost)
	assert.Equal(t, 465, cfg.Notifier.SMTPPort)
	assert.Equal(t, LockMemory, cfg.Lock.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, EventsLog, cfg.Events.Backend)
	assert.Equal(t, "receipt-events", cfg.Events.KafkaTopic)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromEnvOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://feedesk@db/feedesk")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("EVENTS_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "redpanda:9092, kafka:9092,redpanda:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://fees.example.com,https://admin.example.com")
	t.Setenv("RECEIPT_SUFFIX_LEN", "8")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, LedgerPostgres, cfg.Ledger.Backend)
	assert.Equal(t, 90*time.Second, cfg.Lock.TTL)
	assert.Equal(t, []string{"redpanda:9092", "kafka:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, []string{"https://fees.example.com", "https://admin.example.com"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 8, cfg.Receipt.SuffixLen)
}

func TestFromEnvParseErrors(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("SMTP_PORT", "not-a-port")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_PORT")
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) Config {
		setMinimalEnv(t)
		cfg, err := FromEnv()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "sqlite" }, `LEDGER_BACKEND: unknown backend "sqlite"`},
		{"postgres without dsn", func(c *Config) { c.Ledger.Backend = LedgerPostgres }, "DATABASE_URL is required"},
		{"mongo without url", func(c *Config) { c.Ledger.Backend = LedgerMongo }, "MONGO_URL is required"},
		{"smtp without credentials", func(c *Config) { c.Notifier.SenderPassword = "" }, "SENDER_PASSWORD are required"},
		{"zeptomail without key", func(c *Config) { c.Notifier.Backend = NotifierZeptoMail }, "ZEPTO_API_KEY are required"},
		{"gotenberg without url", func(c *Config) { c.Converter.Backend = ConverterFailover }, "GOTENBERG_URL is required"},
		{"redis lock without url", func(c *Config) { c.Lock.Backend = LockRedis }, "REDIS_URL is required"},
		{"postgres events without dsn", func(c *Config) { c.Events.Backend = EventsPostgres }, "DATABASE_URL is required for postgres events"},
		{"kafka without brokers", func(c *Config) { c.Events.Backend = EventsKafka }, "KAFKA_BROKERS is required"},
		{"cloudinary without credentials", func(c *Config) { c.Artifacts.Backend = ArtifactsCloudinary }, "CLOUDINARY_CLOUD_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("log notifier needs no credentials", func(t *testing.T) {
		cfg := base(t)
		cfg.Notifier = Notifier{Backend: NotifierLog}
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("seeds unset variables only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("FEEDESK_TEST_SEEDED=from-file\nFEEDESK_TEST_SET=from-file\n"), 0o600))
		t.Setenv("FEEDESK_TEST_SET", "from-env")
		t.Setenv("FEEDESK_TEST_SEEDED", "")
		require.NoError(t, os.Unsetenv("FEEDESK_TEST_SEEDED"))

		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "from-file", os.Getenv("FEEDESK_TEST_SEEDED"))
		assert.Equal(t, "from-env", os.Getenv("FEEDESK_TEST_SET"))
	})
}
