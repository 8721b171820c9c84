package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dom/jober-auth/internal/config"
)

// PlasGateClient sends SMS through the PlasGate REST API.
type PlasGateClient struct {
	cfg    config.SMS
	client *http.Client
}

func NewPlasGateClient(cfg config.SMS, client *http.Client) *PlasGateClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://cloudapi.plasgate.com"
	}
	return &PlasGateClient{cfg: cfg, client: client}
}

type plasGateRequest struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Content string `json:"content"`
}

func (c *PlasGateClient) Send(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(plasGateRequest{
		Sender:  c.cfg.Sender,
		To:      digitsOnly(phone),
		Content: Message(code),
	})
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/rest/send?private_key=" + url.QueryEscape(c.cfg.PrivateKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Secret", c.cfg.Secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("plasgate send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(respBody))
		if detail == "" {
			detail = resp.Status
		}
		return fmt.Errorf("plasgate send failed (%d): %s", resp.StatusCode, detail)
	}
	return nil
}

func digitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
