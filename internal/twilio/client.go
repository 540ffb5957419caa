package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/pkg/logger"
)

const defaultAPIBase = "https://api.twilio.com"

// Client triggers outbound calls through the Twilio REST API.
type Client struct {
	httpClient  *http.Client
	apiBase     string
	accountSID  string
	authToken   string
	phoneNumber string
	logger      *logger.Logger
}

// NewClient creates a new Twilio REST client
func NewClient(cfg *config.TwilioConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiBase:     defaultAPIBase,
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		phoneNumber: cfg.PhoneNumber,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("twilio-cli"),
	}
}

// callResource is the subset of Twilio's call resource we read back
type callResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// CreateCall initiates an outbound call to the given number, pointing
// Twilio's answer webhook at answerURL. It returns the provider call SID.
func (c *Client) CreateCall(ctx context.Context, to, answerURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.phoneNumber)
	form.Set("Url", answerURL)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.apiBase, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug("Creating outbound call",
		logger.String("to", to),
		logger.String("from", c.phoneNumber))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		c.logger.Error("Call creation failed",
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var call callResource
	if err := json.Unmarshal(body, &call); err != nil {
		return "", fmt.Errorf("failed to parse JSON: %w", err)
	}

	c.logger.Info("Outbound call created",
		logger.String("call_sid", call.SID),
		logger.String("status", call.Status))

	return call.SID, nil
}

// SetAPIBase overrides the Twilio API base URL (used by tests).
func (c *Client) SetAPIBase(base string) {
	c.apiBase = base
}
