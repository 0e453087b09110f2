// Package whatsapp is the Cloud API transport: sending text messages and
// parsing inbound webhook payloads.
package whatsapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const defaultBaseURL = "https://graph.facebook.com"

// Sender delivers one text message and returns the transport's message id.
type Sender interface {
	Send(ctx context.Context, waID, text string) (string, error)
}

// Client talks to the Graph API messages endpoint of one phone number.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	version       string
	phoneNumberID string
	accessToken   string
	log           *slog.Logger
}

type ClientConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}
	return &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       base,
		version:       version,
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
		log:           logger,
	}
}

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             outboundText `json:"text"`
}

type outboundText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// Send posts one text message and returns the wamid WhatsApp assigns it.
func (c *Client) Send(ctx context.Context, waID, text string) (string, error) {
	payload, err := sonic.Marshal(outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               waID,
		Type:             "text",
		Text:             outboundText{Body: text},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", waID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("send to %s: status %d: %s", waID, resp.StatusCode, body)
	}

	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := sonic.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("send to %s: response carries no message id", waID)
	}
	c.log.Info("whatsapp message sent", "wa_id", waID, "wamid", out.Messages[0].ID)
	return out.Messages[0].ID, nil
}

// NormalizeMexicanNumber drops the extra mobile "1" from numbers in the
// 521XXXXXXXXXX format, which the Cloud API reports for Mexican leads.
func NormalizeMexicanNumber(number string) string {
	if strings.HasPrefix(number, "521") && len(number) >= 12 {
		return "52" + number[3:]
	}
	return number
}
