package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Local    LocalConfig    `mapstructure:"local"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Email    EmailConfig    `mapstructure:"email"`
	Push     PushConfig     `mapstructure:"push"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the shared task store configuration
type DatabaseConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Name               string        `mapstructure:"name"`
	User               string        `mapstructure:"user"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath     string        `mapstructure:"migrations_path"`
	ListenMinReconnect time.Duration `mapstructure:"listen_min_reconnect"`
	ListenMaxReconnect time.Duration `mapstructure:"listen_max_reconnect"`
	ListenPingInterval time.Duration `mapstructure:"listen_ping_interval"`
}

// LocalConfig holds the device-local store configuration
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	ExpiresIn time.Duration `mapstructure:"expires_in"`
	Issuer    string        `mapstructure:"issuer"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EngineConfig holds task lifecycle engine configuration
type EngineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
}

// EmailConfig holds EmailJS delivery configuration
type EmailConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ServiceID  string        `mapstructure:"service_id"`
	TemplateID string        `mapstructure:"template_id"`
	PublicKey  string        `mapstructure:"public_key"`
	PrivateKey string        `mapstructure:"private_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PushConfig holds OneSignal delivery configuration
type PushConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	AppID            string        `mapstructure:"app_id"`
	RESTAPIKey       string        `mapstructure:"rest_api_key"`
	SiteURL          string        `mapstructure:"site_url"`
	ExternalIDPrefix string        `mapstructure:"external_id_prefix"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "FamilyBoard")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "familyboard")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "30s")
	viper.SetDefault("database.migrations_path", "file://migrations")
	viper.SetDefault("database.listen_min_reconnect", "1s")
	viper.SetDefault("database.listen_max_reconnect", "1m")
	viper.SetDefault("database.listen_ping_interval", "90s")

	// Local store defaults
	viper.SetDefault("local.path", "data/device.db")

	// JWT defaults
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.expires_in", "24h")
	viper.SetDefault("jwt.issuer", "familyboard")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
	viper.SetDefault("logger.filename", "")

	// Security defaults
	viper.SetDefault("security.cors_allowed_origins", "*")
	viper.SetDefault("security.rate_limit_requests", 20)
	viper.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)

	// Engine defaults
	viper.SetDefault("engine.tick_interval", "1s")
	viper.SetDefault("engine.send_timeout", "15s")

	// Email defaults
	viper.SetDefault("email.base_url", "https://api.emailjs.com")
	viper.SetDefault("email.timeout", "10s")

	// Push defaults
	viper.SetDefault("push.base_url", "https://api.onesignal.com")
	viper.SetDefault("push.external_id_prefix", "family-")
	viper.SetDefault("push.timeout", "10s")
}

func bindEnvVars() {
	// App
	viper.BindEnv("app.name", "APP_NAME")
	viper.BindEnv("app.version", "APP_VERSION")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("app.debug", "APP_DEBUG")

	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")
	viper.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.name", "DB_NAME")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.ssl_mode", "DB_SSL_MODE")
	viper.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	viper.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	viper.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	viper.BindEnv("database.conn_max_idle_time", "DB_CONN_MAX_IDLE_TIME")
	viper.BindEnv("database.migrations_path", "DB_MIGRATIONS_PATH")

	// Local store
	viper.BindEnv("local.path", "LOCAL_STORE_PATH")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.expires_in", "JWT_EXPIRES_IN")
	viper.BindEnv("jwt.issuer", "JWT_ISSUER")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.format", "LOG_FORMAT")
	viper.BindEnv("logger.output", "LOG_OUTPUT")
	viper.BindEnv("logger.filename", "LOG_FILENAME")

	// Security
	viper.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")

	// Metrics
	viper.BindEnv("metrics.enabled", "ENABLE_METRICS")

	// Engine
	viper.BindEnv("engine.tick_interval", "ENGINE_TICK_INTERVAL")
	viper.BindEnv("engine.send_timeout", "ENGINE_SEND_TIMEOUT")

	// Email
	viper.BindEnv("email.base_url", "EMAILJS_BASE_URL")
	viper.BindEnv("email.service_id", "EMAILJS_SERVICE_ID")
	viper.BindEnv("email.template_id", "EMAILJS_TEMPLATE_ID")
	viper.BindEnv("email.public_key", "EMAILJS_PUBLIC_KEY")
	viper.BindEnv("email.private_key", "EMAILJS_PRIVATE_KEY")
	viper.BindEnv("email.timeout", "EMAILJS_TIMEOUT")

	// Push
	viper.BindEnv("push.base_url", "ONESIGNAL_BASE_URL")
	viper.BindEnv("push.app_id", "ONESIGNAL_APP_ID")
	viper.BindEnv("push.rest_api_key", "ONESIGNAL_REST_API_KEY")
	viper.BindEnv("push.site_url", "SITE_URL")
	viper.BindEnv("push.external_id_prefix", "ONESIGNAL_EXTERNAL_ID_PREFIX")
	viper.BindEnv("push.timeout", "ONESIGNAL_TIMEOUT")
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if cfg.Local.Path == "" {
		return fmt.Errorf("local store path is required")
	}

	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT secret must be set")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine tick interval must be positive")
	}

	return nil
}

// GetDSN returns the database connection string
func (cfg *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// Configured reports whether every credential EmailJS needs is present.
func (cfg *EmailConfig) Configured() bool {
	return cfg.ServiceID != "" && cfg.TemplateID != "" && cfg.PublicKey != ""
}

// Configured reports whether the push provider credentials are present.
func (cfg *PushConfig) Configured() bool {
	return cfg.AppID != "" && cfg.RESTAPIKey != ""
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}
