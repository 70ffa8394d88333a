// Package client is a typed HTTP client for the /api surface. It is what the
// terminal client and the session manager talk to the server through.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"infinitetms/internal/apperr"
	"infinitetms/internal/assistant"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
)

const defaultTimeout = 30 * time.Second

type LoginResponse struct {
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresIn    int64             `json:"expiresIn"`
	User         models.User       `json:"user"`
	Capabilities auth.Capabilities `json:"capabilities"`
}

type RefreshResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type MeResponse struct {
	User         models.User       `json:"user"`
	Capabilities auth.Capabilities `json:"capabilities"`
}

type NewTicket struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Month       string `json:"month,omitempty"`
	Year        int    `json:"year,omitempty"`
	Assignee    *int64 `json:"assignee,omitempty"`
}

type PeriodGroup struct {
	Period  string          `json:"period"`
	Month   string          `json:"month"`
	Year    int             `json:"year"`
	Tickets []models.Ticket `json:"tickets"`
}

type Client struct {
	baseURL string
	hc      *http.Client
	token   func() string
}

// New returns a client for the server at baseURL (scheme and host, with or
// without the /api suffix). hc may be nil.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return &Client{baseURL: base, hc: hc, token: func() string { return "" }}
}

// SetTokenSource installs the function consulted for the bearer token on
// every authenticated request.
func (c *Client) SetTokenSource(fn func() string) {
	if fn == nil {
		fn = func() string { return "" }
	}
	c.token = fn
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		if apperr.HTTPStatus(err) == http.StatusUnauthorized {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var out RefreshResponse
	if err := c.doJSON(ctx, http.MethodPost, "/refresh-token", "", map[string]string{"refreshToken": refreshToken}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: refresh response carried no token", apperr.ErrAuth)
	}
	return &out, nil
}

// Logout invalidates the session behind accessToken. It takes the token
// explicitly because callers clear their own state before calling it.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var out MeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/me", c.token(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTickets lists tickets for view ("pool", "mine", "all" or "" for the
// role default), optionally filtered by status.
func (c *Client) ListTickets(ctx context.Context, view string, status models.TicketStatus) ([]models.Ticket, error) {
	q := url.Values{}
	if view != "" {
		q.Set("view", view)
	}
	if status != "" {
		q.Set("status", string(status))
	}
	path := "/tickets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Ticket
	if err := c.doJSON(ctx, http.MethodGet, path, c.token(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MyTicketsByPeriod(ctx context.Context) ([]PeriodGroup, error) {
	var out []PeriodGroup
	if err := c.doJSON(ctx, http.MethodGet, "/my-tickets?group=period", c.token(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	var out models.Ticket
	if err := c.doJSON(ctx, http.MethodGet, ticketPath(id, ""), c.token(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTicket(ctx context.Context, in NewTicket) (*models.Ticket, error) {
	var out models.Ticket
	if err := c.doJSON(ctx, http.MethodPost, "/tickets", c.token(), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClaimTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	var out models.Ticket
	if err := c.doJSON(ctx, http.MethodPost, ticketPath(id, "/claim"), c.token(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus sets a ticket's status. A non-nil version makes the write
// conditional; a stale one comes back as apperr.ErrConflict.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status models.TicketStatus, version *int64) (*models.Ticket, error) {
	body := map[string]any{"status": status}
	if version != nil {
		body["version"] = *version
	}
	var out models.Ticket
	if err := c.doJSON(ctx, http.MethodPut, ticketPath(id, ""), c.token(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostUpdate adds a progress note, with an optional screenshot, and returns
// the stored note together with the ticket as it is afterwards.
func (c *Client) PostUpdate(ctx context.Context, ticketID int64, text, screenshotName string, screenshot io.Reader) (*models.TicketUpdate, *models.Ticket, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("ticketId", strconv.FormatInt(ticketID, 10))
	_ = mw.WriteField("updateText", text)
	if screenshot != nil {
		fw, err := mw.CreateFormFile("screenshot", screenshotName)
		if err != nil {
			return nil, nil, err
		}
		if _, err := io.Copy(fw, screenshot); err != nil {
			return nil, nil, fmt.Errorf("read screenshot: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, nil, err
	}

	var out struct {
		Update models.TicketUpdate `json:"update"`
		Ticket models.Ticket       `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodPost, "/updates", c.token(), &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, nil, err
	}
	return &out.Update, &out.Ticket, nil
}

func (c *Client) ListUpdates(ctx context.Context, ticketID int64) ([]models.TicketUpdate, error) {
	var out []models.TicketUpdate
	if err := c.doJSON(ctx, http.MethodGet, ticketPath(ticketID, "/updates"), c.token(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Summary(ctx context.Context, ticketID int64) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.doJSON(ctx, http.MethodGet, ticketPath(ticketID, "/summary"), c.token(), nil, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

func (c *Client) Chat(ctx context.Context, message string, history []assistant.Message) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	body := map[string]any{"message": message, "history": history}
	if err := c.doJSON(ctx, http.MethodPost, "/assistant/chat", c.token(), body, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

func ticketPath(id int64, suffix string) string {
	return "/tickets/" + strconv.FormatInt(id, 10) + suffix
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, token, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrServiceUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.FromStatus(resp.StatusCode, errorMessage(resp.Body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts the text of an error response: the "error" field of
// a JSON body, or the plain body the auth middleware writes.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
