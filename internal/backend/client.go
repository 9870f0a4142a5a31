package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/noot-app/recipebox/internal/auth"
	"github.com/noot-app/recipebox/internal/types"
)

// maxErrorBody caps how much of an error response is kept in StatusError
const maxErrorBody = 512

// Client talks to the recipe and ingredient collaborators over HTTP
type Client struct {
	baseURL     string
	http        *http.Client
	credentials auth.BasicCredentials
	retryFor    time.Duration
	log         *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCredentials sets the Basic credentials sent to the ingredient endpoints
func WithCredentials(creds auth.BasicCredentials) Option {
	return func(c *Client) { c.credentials = creds }
}

// WithRetry retries transient failures for up to maxElapsed. Zero disables retries.
func WithRetry(maxElapsed time.Duration) Option {
	return func(c *Client) { c.retryFor = maxElapsed }
}

// NewClient creates a backend client rooted at baseURL (for example
// http://127.0.0.1:8000/api)
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRecipes fetches every saved recipe with its ingredients and steps
func (c *Client) ListRecipes(ctx context.Context) ([]types.BackendRecipe, error) {
	var out []types.BackendRecipe
	if err := c.doJSON(ctx, http.MethodGet, "/recipes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRecipe fetches a single recipe
func (c *Client) GetRecipe(ctx context.Context, id int64) (*types.BackendRecipe, error) {
	var out types.BackendRecipe
	if err := c.doJSON(ctx, http.MethodGet, "/recipes/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRecipe posts a new recipe
func (c *Client) CreateRecipe(ctx context.Context, payload types.RecipePayload) (*types.BackendRecipe, error) {
	var out types.BackendRecipe
	if err := c.doJSON(ctx, http.MethodPost, "/recipes", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRecipe replaces a recipe. The backend re-syncs ingredients and
// recreates every step.
func (c *Client) UpdateRecipe(ctx context.Context, id int64, payload types.RecipePayload) (*types.BackendRecipe, error) {
	var out types.BackendRecipe
	if err := c.doJSON(ctx, http.MethodPut, "/recipes/"+strconv.FormatInt(id, 10), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRecipe removes a recipe
func (c *Client) DeleteRecipe(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/recipes/"+strconv.FormatInt(id, 10), nil, nil)
}

// ListIngredients returns every ingredient the collaborator knows about
func (c *Client) ListIngredients(ctx context.Context) ([]types.ManualIngredient, error) {
	body, err := c.do(ctx, http.MethodGet, "/ingredients", nil, "", true)
	if err != nil {
		return nil, err
	}
	infos, err := decodeIngredients(body)
	if err != nil {
		return nil, err
	}
	out := make([]types.ManualIngredient, 0, len(infos))
	for _, info := range infos {
		if strings.TrimSpace(info.Name) == "" {
			continue
		}
		out = append(out, types.ManualIngredient{
			Name:    info.Name,
			Protein: float64(info.Protein),
			Carbs:   float64(info.Carbs),
			Fat:     float64(info.Fat),
		})
	}
	return out, nil
}

// LookupIngredient searches the collaborator for name. A nil record means no
// match; the caller decides whether an all-zero record counts as one.
func (c *Client) LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/ingredients/search/"+url.PathEscape(name), nil, "", true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	infos, err := decodeIngredients(body)
	if err != nil {
		return nil, err
	}
	info := pickIngredient(infos, name)
	if info == nil {
		return nil, nil
	}
	return &types.NutritionRecord{
		Protein: float64(info.Protein),
		Carbs:   float64(info.Carbs),
		Fat:     float64(info.Fat),
	}, nil
}

// CreateIngredient posts a manually entered ingredient as a form
func (c *Client) CreateIngredient(ctx context.Context, entry types.ManualIngredient) error {
	form := url.Values{}
	form.Set("name", entry.Name)
	form.Set("carbs", strconv.FormatFloat(entry.Carbs, 'f', -1, 64))
	form.Set("fat", strconv.FormatFloat(entry.Fat, 'f', -1, 64))
	form.Set("protein", strconv.FormatFloat(entry.Protein, 'f', -1, 64))

	_, err := c.do(ctx, http.MethodPost, "/ingredients", []byte(form.Encode()), "application/x-www-form-urlencoded", true)
	return err
}

// HealthCheck verifies the recipe collaborator answers
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/recipes", nil, "", false)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = b
	}

	respBody, err := c.do(ctx, method, path, body, "application/json", false)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// do sends one request, retrying transient failures when configured
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, withAuth bool) ([]byte, error) {
	start := time.Now()
	var respBody []byte

	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil && contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if withAuth {
			c.credentials.Apply(req)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if isTransient(err) && (idempotent(method) || notSent(err)) {
				return err
			}
			return backoff.Permanent(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if len(data) > maxErrorBody {
				data = data[:maxErrorBody]
			}
			statusErr := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(data)}
			if statusErr.temporary() && idempotent(method) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		respBody = data
		return nil
	}

	var err error
	if c.retryFor > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = c.retryFor
		err = backoff.RetryNotify(op, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
			c.log.Warn("Backend request failed, retrying", "method", method, "path", path, "error", err, "wait", wait)
		})
	} else {
		err = op()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
	}

	if err != nil {
		c.log.Debug("Backend request failed", "method", method, "path", path, "error", err, "duration", time.Since(start))
		return nil, err
	}
	c.log.Debug("Backend request completed", "method", method, "path", path, "duration", time.Since(start))
	return respBody, nil
}

// isTransient reports whether a transport error is worth retrying
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}

// idempotent reports whether repeating method cannot create a second resource.
// A POST that timed out may already have been stored.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// notSent reports whether the request failed before reaching the server
func notSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// decodeIngredients accepts a single object, a list, or an empty body
func decodeIngredients(body []byte) ([]IngredientInfo, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	if body[0] == '[' {
		var list []IngredientInfo
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to decode ingredient list: %w", err)
		}
		return list, nil
	}
	var one IngredientInfo
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, fmt.Errorf("failed to decode ingredient: %w", err)
	}
	return []IngredientInfo{one}, nil
}

// pickIngredient returns the entry whose name matches exactly, ignoring case.
// The search endpoint also returns substring matches, which never count. A
// single unnamed object is the collaborator's answer for name itself.
func pickIngredient(infos []IngredientInfo, name string) *IngredientInfo {
	for i := range infos {
		if strings.EqualFold(strings.TrimSpace(infos[i].Name), strings.TrimSpace(name)) {
			return &infos[i]
		}
	}
	if len(infos) == 1 && strings.TrimSpace(infos[0].Name) == "" {
		return &infos[0]
	}
	return nil
}
