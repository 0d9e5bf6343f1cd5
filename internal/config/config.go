package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	JWT        JWTConfig        `yaml:"jwt"`
	Cookie     CookieConfig     `yaml:"cookie"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	SMS        SMSConfig        `yaml:"sms"`
	Mail       MailConfig       `yaml:"mail"`
	AI         AIConfig         `yaml:"ai"`
	Relay      RelayConfig      `yaml:"relay"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Jobs       JobsConfig       `yaml:"jobs"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Namespace       string        `yaml:"namespace"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string        `yaml:"private_key_path"`
	PublicKeyPath  string        `yaml:"public_key_path"`
	Issuer         string        `yaml:"issuer"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
}

// CookieConfig holds auth cookie settings
type CookieConfig struct {
	Domain string `yaml:"domain"`
	Secure bool   `yaml:"secure"`
}

// OAuthConfig holds OAuth provider settings
type OAuthConfig struct {
	Google GoogleOAuthConfig `yaml:"google"`
}

// GoogleOAuthConfig holds Google OAuth settings
type GoogleOAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	// SuccessURL is where the browser lands after the callback sets the
	// auth cookies. Empty means the callback answers with JSON.
	SuccessURL   string `yaml:"success_url"`
}

// SMSConfig holds Twilio Verify settings
type SMSConfig struct {
	AccountSID       string `yaml:"account_sid"`
	AuthToken        string `yaml:"auth_token"`
	VerifyServiceSID string `yaml:"verify_service_sid"`
	BaseURL          string `yaml:"base_url"`
}

// MailConfig holds SMTP settings for verification mail
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// AIConfig holds generative AI provider settings
type AIConfig struct {
	Provider       string `yaml:"provider"` // gemini, openai
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	GeminiBaseURL  string `yaml:"gemini_base_url"`
	GeminiModel    string `yaml:"gemini_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	OpenAIModel    string `yaml:"openai_model"`
	OpenAIEmbed    string `yaml:"openai_embedding_model"`
	WhisperModel   string `yaml:"whisper_model"`
}

// RelayConfig holds WebSocket relay and WebRTC client settings
type RelayConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	STUNURLs       []string `yaml:"stun_urls"`
	TURNURLs       []string `yaml:"turn_urls"`
	TURNUsername   string   `yaml:"turn_username"`
	TURNCredential string   `yaml:"turn_credential"`
}

// TranscribeConfig holds audio chunk and STT pipeline settings
type TranscribeConfig struct {
	AudioDir  string `yaml:"audio_dir"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
	Language  string `yaml:"language"`
}

// JobsConfig holds background job intervals
type JobsConfig struct {
	DiscussionCloseInterval time.Duration `yaml:"discussion_close_interval"`
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Env:            "development",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "8000",
			Namespace:       "momoso",
			Database:        "main",
			User:            "root",
			Password:        "root",
			ConnectAttempts: 5,
			QueryTimeout:    10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		JWT: JWTConfig{
			PrivateKeyPath: "./keys/private.pem",
			PublicKeyPath:  "./keys/public.pem",
			Issuer:         "momoso",
			AccessTTL:      30 * time.Minute,
			RefreshTTL:     7 * 24 * time.Hour,
		},
		SMS: SMSConfig{
			BaseURL: "https://verify.twilio.com/v2",
		},
		Mail: MailConfig{
			Port: 587,
		},
		AI: AIConfig{
			Provider:       "gemini",
			GeminiModel:    "gemini-2.0-flash",
			EmbeddingModel: "text-embedding-004",
			OpenAIBaseURL:  "https://api.openai.com/v1",
			OpenAIModel:    "gpt-4o-mini",
			OpenAIEmbed:    "text-embedding-3-small",
			WhisperModel:   "whisper-1",
		},
		Relay: RelayConfig{
			STUNURLs: []string{"stun:stun.l.google.com:19302"},
		},
		Transcribe: TranscribeConfig{
			AudioDir:  "./audio_recordings",
			Workers:   4,
			QueueSize: 256,
			Language:  "ko-KR",
		},
		Jobs: JobsConfig{
			DiscussionCloseInterval: time.Minute,
		},
	}
}

// Load reads configuration from an optional YAML file named by
// MOMOSO_CONFIG, then applies environment variable overrides
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("MOMOSO_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Env = getEnv("SERVER_ENV", c.Server.Env)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.AllowedOrigins = getSliceEnv("CORS_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.Namespace = getEnv("DB_NAMESPACE", c.Database.Namespace)
	c.Database.Database = getEnv("DB_DATABASE", c.Database.Database)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.ConnectAttempts = getIntEnv("DB_CONNECT_ATTEMPTS", c.Database.ConnectAttempts)
	c.Database.QueryTimeout = getDurationEnv("DB_QUERY_TIMEOUT", c.Database.QueryTimeout)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("REDIS_DB", c.Redis.DB)

	c.JWT.PrivateKeyPath = getEnv("JWT_PRIVATE_KEY_PATH", c.JWT.PrivateKeyPath)
	c.JWT.PublicKeyPath = getEnv("JWT_PUBLIC_KEY_PATH", c.JWT.PublicKeyPath)
	c.JWT.Issuer = getEnv("JWT_ISSUER", c.JWT.Issuer)
	c.JWT.AccessTTL = getDurationEnv("JWT_ACCESS_TTL", c.JWT.AccessTTL)
	c.JWT.RefreshTTL = getDurationEnv("JWT_REFRESH_TTL", c.JWT.RefreshTTL)

	c.Cookie.Domain = getEnv("COOKIE_DOMAIN", c.Cookie.Domain)
	c.Cookie.Secure = getBoolEnv("COOKIE_SECURE", c.Cookie.Secure)
	if !c.IsDevelopment() {
		c.Cookie.Secure = true
	}

	c.OAuth.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", c.OAuth.Google.ClientID)
	c.OAuth.Google.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.OAuth.Google.ClientSecret)
	c.OAuth.Google.RedirectURI = getEnv("GOOGLE_REDIRECT_URI", c.OAuth.Google.RedirectURI)
	c.OAuth.Google.SuccessURL = getEnv("GOOGLE_SUCCESS_URL", c.OAuth.Google.SuccessURL)

	c.SMS.AccountSID = getEnv("TWILIO_ACCOUNT_SID", c.SMS.AccountSID)
	c.SMS.AuthToken = getEnv("TWILIO_AUTH_TOKEN", c.SMS.AuthToken)
	c.SMS.VerifyServiceSID = getEnv("TWILIO_VERIFY_SERVICE_SID", c.SMS.VerifyServiceSID)
	c.SMS.BaseURL = getEnv("TWILIO_VERIFY_BASE_URL", c.SMS.BaseURL)

	c.Mail.Host = getEnv("MAIL_SERVER", c.Mail.Host)
	c.Mail.Port = getIntEnv("MAIL_PORT", c.Mail.Port)
	c.Mail.Username = getEnv("MAIL_USERNAME", c.Mail.Username)
	c.Mail.Password = getEnv("MAIL_PASSWORD", c.Mail.Password)
	c.Mail.From = getEnv("MAIL_FROM", c.Mail.From)

	c.AI.Provider = getEnv("AI_PROVIDER", c.AI.Provider)
	c.AI.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.AI.GeminiAPIKey)
	c.AI.GeminiBaseURL = getEnv("GEMINI_BASE_URL", c.AI.GeminiBaseURL)
	c.AI.GeminiModel = getEnv("GEMINI_MODEL", c.AI.GeminiModel)
	c.AI.EmbeddingModel = getEnv("GEMINI_EMBEDDING_MODEL", c.AI.EmbeddingModel)
	c.AI.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.AI.OpenAIAPIKey)
	c.AI.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.AI.OpenAIBaseURL)
	c.AI.OpenAIModel = getEnv("OPENAI_MODEL", c.AI.OpenAIModel)
	c.AI.OpenAIEmbed = getEnv("OPENAI_EMBEDDING_MODEL", c.AI.OpenAIEmbed)
	c.AI.WhisperModel = getEnv("OPENAI_WHISPER_MODEL", c.AI.WhisperModel)

	c.Relay.AllowedOrigins = getSliceEnv("RELAY_ALLOWED_ORIGINS", c.Relay.AllowedOrigins)
	c.Relay.STUNURLs = getSliceEnv("RTC_STUN_URLS", c.Relay.STUNURLs)
	c.Relay.TURNURLs = getSliceEnv("RTC_TURN_URLS", c.Relay.TURNURLs)
	c.Relay.TURNUsername = getEnv("RTC_TURN_USERNAME", c.Relay.TURNUsername)
	c.Relay.TURNCredential = getEnv("RTC_TURN_CREDENTIAL", c.Relay.TURNCredential)

	c.Transcribe.AudioDir = getEnv("AUDIO_DIR", c.Transcribe.AudioDir)
	c.Transcribe.Workers = getIntEnv("STT_WORKERS", c.Transcribe.Workers)
	c.Transcribe.QueueSize = getIntEnv("STT_QUEUE_SIZE", c.Transcribe.QueueSize)
	c.Transcribe.Language = getEnv("STT_LANGUAGE", c.Transcribe.Language)

	c.Jobs.DiscussionCloseInterval = getDurationEnv("JOB_DISCUSSION_CLOSE_INTERVAL", c.Jobs.DiscussionCloseInterval)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}

	if c.IsProduction() {
		if c.JWT.PrivateKeyPath == "" {
			errs = append(errs, errors.New("JWT_PRIVATE_KEY_PATH is required in production"))
		}
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
		}
	}
	if c.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL"))
	}

	if c.OAuth.Google.IsConfigured() {
		if err := c.OAuth.Google.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("Google OAuth: %w", err))
		}
	}
	if c.SMS.IsConfigured() {
		if err := c.SMS.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("SMS: %w", err))
		}
	}
	if c.Mail.IsConfigured() {
		if err := c.Mail.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("Mail: %w", err))
		}
	}
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("AI: %w", err))
	}

	if c.Transcribe.Workers <= 0 {
		errs = append(errs, errors.New("STT_WORKERS must be positive"))
	}
	if c.Transcribe.QueueSize <= 0 {
		errs = append(errs, errors.New("STT_QUEUE_SIZE must be positive"))
	}
	if c.Transcribe.AudioDir == "" {
		errs = append(errs, errors.New("AUDIO_DIR is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IsConfigured returns true if any Google OAuth field is set
func (g GoogleOAuthConfig) IsConfigured() bool {
	return g.ClientID != "" || g.ClientSecret != "" || g.RedirectURI != ""
}

// Validate checks that all required Google OAuth fields are present
func (g GoogleOAuthConfig) Validate() error {
	var missing []string
	if g.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if g.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if g.RedirectURI == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsConfigured returns true if any Twilio credential is set
func (s SMSConfig) IsConfigured() bool {
	return s.AccountSID != "" || s.AuthToken != "" || s.VerifyServiceSID != ""
}

// Validate checks that all required Twilio fields are present
func (s SMSConfig) Validate() error {
	var missing []string
	if s.AccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if s.AuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if s.VerifyServiceSID == "" {
		missing = append(missing, "TWILIO_VERIFY_SERVICE_SID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsConfigured returns true if an SMTP server is set
func (m MailConfig) IsConfigured() bool {
	return m.Host != "" || m.Username != ""
}

// Validate checks that all required SMTP fields are present
func (m MailConfig) Validate() error {
	var missing []string
	if m.Host == "" {
		missing = append(missing, "MAIL_SERVER")
	}
	if m.From == "" {
		missing = append(missing, "MAIL_FROM")
	}
	if m.Port <= 0 || m.Port > 65535 {
		missing = append(missing, "MAIL_PORT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing or invalid fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks the provider selection and its key
func (a AIConfig) Validate() error {
	switch a.Provider {
	case "gemini":
		if a.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
		}
	case "openai":
		if a.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when AI_PROVIDER is openai")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be 'gemini' or 'openai', got '%s'", a.Provider)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
