package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"citizenly/pkg/platform/sentinel"
)

// HTTPClient talks to the auth service's admin API (a GoTrue-style surface:
// POST /admin/users, GET /admin/users/{id}) using a service-role key.
type HTTPClient struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

func NewHTTPClient(baseURL, serviceKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: timeout},
	}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Admin-created users skip the confirmation email; approval is handled
	// by the application workflow instead.
	EmailConfirm bool `json:"email_confirm"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Message string `json:"msg"`
	Code    string `json:"error_code"`
}

func (c *HTTPClient) Create(ctx context.Context, email, password string) (*Identity, error) {
	body, err := json.Marshal(createUserRequest{Email: email, Password: password, EmailConfirm: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var user userResponse
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("decode identity response: %w", err)
		}
		return &Identity{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, sentinel.ErrConflict
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The provider reports duplicate emails as 422 with a stable code.
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Code == "email_exists" || strings.Contains(er.Message, "already been registered") {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("identity provider rejected request: %s", er.Message)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("identity provider returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		return nil, fmt.Errorf("identity provider returned unexpected status %d", resp.StatusCode)
	}
}

func (c *HTTPClient) FindByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/admin/users/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("find identity: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var user userResponse
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("decode identity response: %w", err)
		}
		return &Identity{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, sentinel.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("identity provider returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		return nil, fmt.Errorf("identity provider returned unexpected status %d", resp.StatusCode)
	}
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
}
