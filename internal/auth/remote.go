package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/portico/internal/cache"
	"github.com/MrSnakeDoc/portico/internal/domain"
)

const (
	// DefaultRemoteTimeout bounds one call to the authority.
	DefaultRemoteTimeout = 5 * time.Second

	maxAuthorityResponse = 1 << 20

	validateTokenQuery = `query ValidateToken($token: String!) {
  validateToken(token: $token) { id email nombre name role }
}`
)

type validateRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type validateResponse struct {
	Data *struct {
		ValidateToken *struct {
			ID     string `json:"id"`
			Email  string `json:"email"`
			Nombre string `json:"nombre"`
			Name   string `json:"name"`
			Role   string `json:"role"`
		} `json:"validateToken"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// RemoteValidator checks opaque reference tokens against the issuing
// authority and caches positive answers.
//
// Concurrent requests presenting the same uncached credential may each call
// the authority; calls are not coalesced.
type RemoteValidator struct {
	url      string
	client   *http.Client
	cache    *cache.ValidationCache
	ttl      time.Duration
	timeout  time.Duration
	recorder Recorder
}

// RemoteOption configures a RemoteValidator.
type RemoteOption func(*RemoteValidator)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(v *RemoteValidator) { v.client = c }
}

// WithTimeout bounds each authority call.
func WithTimeout(d time.Duration) RemoteOption {
	return func(v *RemoteValidator) { v.timeout = d }
}

// WithCacheTTL sets how long a positive answer is reused.
func WithCacheTTL(d time.Duration) RemoteOption {
	return func(v *RemoteValidator) { v.ttl = d }
}

// WithRecorder wires metrics.
func WithRecorder(r Recorder) RemoteOption {
	return func(v *RemoteValidator) { v.recorder = r }
}

// NewRemoteValidator creates a validator calling the authority at url.
func NewRemoteValidator(url string, c *cache.ValidationCache, opts ...RemoteOption) *RemoteValidator {
	v := &RemoteValidator{
		url:      url,
		client:   &http.Client{},
		cache:    c,
		ttl:      cache.DefaultTTL,
		timeout:  DefaultRemoteTimeout,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type remoteResult struct {
	identity domain.Identity
	err      error
}

// Validate returns the identity behind credential, from cache when possible.
//
// The authority call runs on its own timeout, detached from ctx: if ctx ends
// first, Validate returns ErrUnverifiableRemote right away and the in-flight
// call finishes in the background with its result discarded.
func (v *RemoteValidator) Validate(ctx context.Context, credential string) (domain.Identity, error) {
	key := cache.Key(credential)
	if identity, ok := v.cache.Get(key); ok {
		v.recorder.ObserveCacheLookup(true)
		return identity, nil
	}
	v.recorder.ObserveCacheLookup(false)

	done := make(chan remoteResult, 1)
	go func() {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()
		identity, err := v.call(callCtx, credential)
		done <- remoteResult{identity: identity, err: err}
	}()

	select {
	case <-ctx.Done():
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrUnverifiableRemote, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return domain.Identity{}, res.err
		}
		v.cache.Put(key, res.identity, v.ttl)
		return res.identity, nil
	}
}

// Invalidate forgets a credential so the next request goes back to the authority.
func (v *RemoteValidator) Invalidate(credential string) {
	v.cache.Invalidate(cache.Key(credential))
}

func (v *RemoteValidator) call(ctx context.Context, credential string) (domain.Identity, error) {
	body, err := json.Marshal(validateRequest{
		Query:     validateTokenQuery,
		Variables: map[string]string{"token": credential},
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: failed to encode request: %v", ErrUnknownCredential, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: failed to create request: %v", ErrUnverifiableRemote, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrUnverifiableRemote, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 500:
		return domain.Identity{}, fmt.Errorf("%w: authority status %d", ErrUnverifiableRemote, resp.StatusCode)
	case resp.StatusCode >= 400:
		return domain.Identity{}, fmt.Errorf("%w: authority status %d", ErrRemoteRejected, resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAuthorityResponse)).Decode(&out); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: failed to decode response: %v", ErrUnverifiableRemote, err)
	}

	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return domain.Identity{}, fmt.Errorf("%w: %s", ErrRemoteRejected, strings.Join(msgs, "; "))
	}
	if out.Data == nil || out.Data.ValidateToken == nil || out.Data.ValidateToken.ID == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty validateToken payload", ErrRemoteRejected)
	}

	p := out.Data.ValidateToken
	name := p.Nombre
	if name == "" {
		name = p.Name
	}
	return domain.Identity{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: name,
		Role:        p.Role,
	}, nil
}
