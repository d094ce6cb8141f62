// Package email delivers transactional mail through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at a different Postmark endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

// NewClient creates a Postmark client. baseURL is the public address of the
// app, used to build links in messages.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
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

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Invitation describes a pending household invitation.
type Invitation struct {
	To            string
	HouseholdName string
	InviterName   string
	Role          string
	ExpiresAt     time.Time
}

// SendInvitation emails the invitee a sign-in link. Signing in with the
// invited address joins the household.
func (c *Client) SendInvitation(ctx context.Context, inv Invitation) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	link := c.baseURL + "/sign-in"
	expires := inv.ExpiresAt.Format("January 2, 2006")
	subject := fmt.Sprintf("You've been invited to %s on Hearth", inv.HouseholdName)
	role := strings.ToLower(inv.Role)

	textBody := fmt.Sprintf(
		"%s invited you to join %s as a %s.\n\nSign in with this email address to accept:\n\n%s\n\nThis invitation expires on %s.",
		inv.InviterName, inv.HouseholdName, role, link, expires,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s invited you to join <strong>%s</strong> as a %s.</p><p><a href="%s">Sign in to accept</a></p><p>This invitation expires on %s.</p>`,
		inv.InviterName, inv.HouseholdName, role, link, expires,
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       inv.To,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
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
