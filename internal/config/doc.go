// Package config manages application configuration for the Momoso API.
//
// Configuration starts from Defaults, is optionally overlaid with a YAML
// file named by MOMOSO_CONFIG, and is finally overridden by environment
// variables:
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - ServerConfig: HTTP port, environment, timeouts, CORS origins
//   - DatabaseConfig: SurrealDB connection
//   - RedisConfig: session and verification state
//   - JWTConfig / CookieConfig: token keys, lifetimes and cookie flags
//   - OAuthConfig: Google sign-in
//   - SMSConfig / MailConfig: Twilio Verify and SMTP for OTP delivery
//   - AIConfig: Gemini or OpenAI provider selection
//   - RelayConfig: WebSocket origins and ICE servers handed to clients
//   - TranscribeConfig: audio chunk directory and STT worker pool
//   - JobsConfig: background job intervals
//
// # Environment Variables
//
// Frequently used keys:
//
//	SERVER_PORT, SERVER_ENV
//	DB_HOST, DB_PORT, DB_NAMESPACE, DB_DATABASE, DB_USER, DB_PASSWORD
//	REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//	JWT_PRIVATE_KEY_PATH, JWT_PUBLIC_KEY_PATH, JWT_ACCESS_TTL, JWT_REFRESH_TTL
//	TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_VERIFY_SERVICE_SID
//	MAIL_SERVER, MAIL_PORT, MAIL_USERNAME, MAIL_PASSWORD, MAIL_FROM
//	AI_PROVIDER, GEMINI_API_KEY, OPENAI_API_KEY
//	AUDIO_DIR, STT_WORKERS, STT_LANGUAGE
//
// Validate reports every problem at once through errors.Join. Provider
// groups are only validated when at least one of their fields is set.
package config
