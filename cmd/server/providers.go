package main

import (
	"log/slog"

	"github.com/momoso/api/internal/config"
	"github.com/momoso/api/internal/provider"
	"github.com/momoso/api/internal/service"
)

// externalProviders holds the optional third-party integrations. A nil
// field disables the matching feature.
type externalProviders struct {
	sms    service.SMSSender
	mailer service.Mailer
	google service.GoogleAuthenticator
}

// newProviders picks real clients when they are configured. Development
// falls back to log-only stand-ins so signup works without credentials.
func newProviders(cfg *config.Config, logger *slog.Logger) externalProviders {
	var p externalProviders
	dev := cfg.Server.Env == "development"

	switch {
	case cfg.SMS.AccountSID != "" && cfg.SMS.VerifyServiceSID != "":
		p.sms = provider.NewTwilioVerify(provider.TwilioConfig{
			AccountSID:       cfg.SMS.AccountSID,
			AuthToken:        cfg.SMS.AuthToken,
			VerifyServiceSID: cfg.SMS.VerifyServiceSID,
			BaseURL:          cfg.SMS.BaseURL,
		})
	case dev:
		logger.Warn("twilio not configured, sms codes go to the log")
		p.sms = provider.NewDevSMS(logger)
	default:
		logger.Warn("twilio not configured, phone verification disabled")
	}

	switch {
	case cfg.Mail.Host != "":
		p.mailer = provider.NewSMTPMailer(provider.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	case dev:
		logger.Warn("smtp not configured, mail goes to the log")
		p.mailer = provider.NewLogMailer(logger)
	default:
		logger.Warn("smtp not configured, email verification disabled")
	}

	if cfg.OAuth.Google.ClientID != "" {
		p.google = provider.NewGoogleOAuth(provider.GoogleConfig{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURI:  cfg.OAuth.Google.RedirectURI,
		})
	}

	return p
}
