package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TwilioConfig holds Twilio Verify settings
type TwilioConfig struct {
	AccountSID       string
	AuthToken        string
	VerifyServiceSID string
	BaseURL          string
	Timeout          time.Duration
}

// TwilioVerify sends and checks SMS codes through the Twilio Verify API
type TwilioVerify struct {
	client     *resty.Client
	serviceSID string
}

// NewTwilioVerify creates a Twilio Verify client
func NewTwilioVerify(cfg TwilioConfig) *TwilioVerify {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://verify.twilio.com/v2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &TwilioVerify{client: client, serviceSID: cfg.VerifyServiceSID}
}

type verification struct {
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendCode starts an SMS verification to an E.164 number
func (t *TwilioVerify) SendCode(ctx context.Context, to string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"To": to, "Channel": "sms"}).
		SetResult(&verification{}).
		SetError(&twilioError{}).
		Post("/Services/" + t.serviceSID + "/Verifications")
	if err != nil {
		return fmt.Errorf("%w: twilio send: %v", ErrProviderError, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: twilio send: %s", ErrProviderError, twilioMessage(resp))
	}
	return nil
}

// CheckCode reports whether code is the approved code for to. A code that
// expired or was never sent is reported as false, not as an error.
func (t *TwilioVerify) CheckCode(ctx context.Context, to, code string) (bool, error) {
	var result verification
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"To": to, "Code": code}).
		SetResult(&result).
		SetError(&twilioError{}).
		Post("/Services/" + t.serviceSID + "/VerificationCheck")
	if err != nil {
		return false, fmt.Errorf("%w: twilio check: %v", ErrProviderError, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("%w: twilio check: %s", ErrProviderError, twilioMessage(resp))
	}
	return result.Status == "approved", nil
}

func twilioMessage(resp *resty.Response) string {
	if e, ok := resp.Error().(*twilioError); ok && e.Message != "" {
		return fmt.Sprintf("status %d: %s (code %d)", resp.StatusCode(), e.Message, e.Code)
	}
	return resp.Status()
}
