// Package gateway implements the outbound side of the WhatsApp integration:
// a small client for the Evolution API sendText endpoint. Inbound webhooks
// are handled in the HTTP layer; this package only pushes replies.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/paresiga/go-traffic-backend/internal/retry"
)

// Client posts text messages through an Evolution API instance.
type Client struct {
	// HTTP is the underlying client; nil means a 5s-timeout default.
	HTTP *http.Client

	ServerURL string
	Instance  string
	APIKey    string

	Policy retry.Policy
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 5 * time.Second}
}

type sendTextPayload struct {
	Number  string          `json:"number"`
	Text    string          `json:"text"`
	Options sendTextOptions `json:"options"`
}

type sendTextOptions struct {
	Delay    int    `json:"delay"`
	Presence string `json:"presence"`
}

// Notify sends text to target (a group or individual JID), retrying transient
// failures under the client's policy.
func (c *Client) Notify(ctx context.Context, target, text string) error {
	body, err := json.Marshal(sendTextPayload{
		Number: target,
		Text:   text,
		Options: sendTextOptions{
			Delay:    1200,
			Presence: "composing",
		},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.ServerURL, c.Instance)
	_, err = retry.Do(ctx, c.Policy, func() (struct{}, error) {
		return struct{}{}, c.post(ctx, url, body)
	})
	if err != nil {
		log.Error().Err(err).Str("target", target).Msg("gateway send failed")
	}
	return err
}

func (c *Client) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: status %d", resp.StatusCode)
	}
	return nil
}
