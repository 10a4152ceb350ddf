package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/client/models"
	"github.com/dmitrijs2005/gophsocial/internal/common"
)

const apiPrefix = "/api/v1"

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call sends body as JSON and decodes a 2xx answer into out.
func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var env errorEnvelope
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type userEnvelope struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type postEnvelope struct {
	Post      *models.Post `json:"post"`
	UploadURL string       `json:"upload_url"`
}

func (c *HTTPClient) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	var out userEnvelope
	err := c.call(ctx, http.MethodPost, "/register",
		map[string]string{"name": name, "email": email, "password": password}, &out)
	return out.User, err
}

// Login stores the returned access token for later calls.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.User, error) {
	var out userEnvelope
	if err := c.call(ctx, http.MethodPost, "/login",
		map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out.User, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/logout", nil, nil)
	c.SetToken("")
	return err
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var out userEnvelope
	err := c.call(ctx, http.MethodGet, "/me", nil, &out)
	return out.User, err
}

func (c *HTTPClient) ToggleFollow(ctx context.Context, userID string) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	err := c.call(ctx, http.MethodPost, "/users/"+userID+"/follow", nil, &out)
	return out.State, err
}

func (c *HTTPClient) CreatePost(ctx context.Context, caption string, withImage bool) (*models.Post, string, error) {
	var out postEnvelope
	err := c.call(ctx, http.MethodPost, "/posts", map[string]any{"caption": caption, "image": withImage}, &out)
	return out.Post, out.UploadURL, err
}

func (c *HTTPClient) ToggleLike(ctx context.Context, postID string) (bool, error) {
	var out struct {
		Liked bool `json:"liked"`
	}
	err := c.call(ctx, http.MethodPost, "/posts/"+postID+"/like", nil, &out)
	return out.Liked, err
}

func (c *HTTPClient) AddComment(ctx context.Context, postID, text string) (*models.Post, error) {
	var out postEnvelope
	err := c.call(ctx, http.MethodPost, "/posts/"+postID+"/comments", map[string]string{"comment": text}, &out)
	return out.Post, err
}

func (c *HTTPClient) Feed(ctx context.Context) ([]*models.Post, error) {
	var out struct {
		Posts []*models.Post `json:"posts"`
	}
	err := c.call(ctx, http.MethodGet, "/feed", nil, &out)
	return out.Posts, err
}

// DeleteMe deletes the account and forgets the token.
func (c *HTTPClient) DeleteMe(ctx context.Context) ([]models.CascadeStep, error) {
	var out struct {
		Steps []models.CascadeStep `json:"steps"`
	}
	if err := c.call(ctx, http.MethodDelete, "/me", nil, &out); err != nil {
		return nil, err
	}
	c.SetToken("")
	return out.Steps, nil
}
