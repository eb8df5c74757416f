package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client sends transactional email through Postmark. When no server token is
// configured the client reports itself unconfigured and callers fall back to
// returning the invite link directly.
type Client struct {
	serverToken string
	fromEmail   string
	appBaseURL  string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, appBaseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		appBaseURL:  appBaseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

// InviteLink builds the one-time accept link for a raw invite token.
func (c *Client) InviteLink(rawToken string) string {
	return fmt.Sprintf("%s/invite/%s", c.appBaseURL, rawToken)
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendInvite emails a one-time caregiver invite link. The raw token appears
// only in this message; it is never persisted or logged.
func (c *Client) SendInvite(toEmail, babyName, rawToken string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	link := c.InviteLink(rawToken)
	subject := fmt.Sprintf("You've been invited to help care for %s on Sprout", babyName)
	textBody := fmt.Sprintf(
		"You've been invited to log feeds, diapers, sleep, and pumping for %s.\n\nAccept the invitation:\n\n%s\n\nThis link expires in 24 hours.",
		babyName, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>You've been invited to log feeds, diapers, sleep, and pumping for <strong>%s</strong>.</p><p><a href="%s">Accept the invitation</a></p><p>This link expires in 24 hours.</p>`,
		babyName, link,
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
