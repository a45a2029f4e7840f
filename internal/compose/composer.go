// Package compose builds the supergraph description served by the gateway
// from the SDL published by each subgraph. Query planning stays with the
// external engine.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/portico/internal/domain"
)

const (
	sdlQuery       = `{"query":"{ _service { sdl } }"}`
	maxSDLResponse = 4 << 20
)

// Supergraph is the result of one successful composition.
type Supergraph struct {
	SDL        string
	Subgraphs  []string
	ComposedAt time.Time
}

// Composer turns the configured endpoints into a Supergraph.
type Composer interface {
	Compose(ctx context.Context, endpoints []domain.ServiceEndpoint) (Supergraph, error)
}

// SDLComposer fetches `_service { sdl }` from every subgraph and
// concatenates the documents in configuration order.
type SDLComposer struct {
	client *http.Client
	now    func() time.Time
}

// NewSDLComposer returns a composer using client, or a default client when nil.
func NewSDLComposer(client *http.Client) *SDLComposer {
	if client == nil {
		client = &http.Client{}
	}
	return &SDLComposer{client: client, now: time.Now}
}

type sdlResponse struct {
	Data *struct {
		Service *struct {
			SDL string `json:"sdl"`
		} `json:"_service"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Compose fails with an error wrapping ErrInvalidSubgraph when any subgraph
// answers without a usable SDL, and ErrConnectivity when the only failures
// are unreachable subgraphs. Every subgraph is fetched to completion.
func (c *SDLComposer) Compose(ctx context.Context, endpoints []domain.ServiceEndpoint) (Supergraph, error) {
	if len(endpoints) == 0 {
		return Supergraph{}, fmt.Errorf("%w: no subgraphs configured", ErrInvalidSubgraph)
	}

	docs := make([]string, len(endpoints))
	errs := make([]error, len(endpoints))
	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			sdl, err := c.fetch(ctx, ep)
			if err != nil {
				errs[i] = fmt.Errorf("subgraph %s: %w", ep.Name, err)
				return nil
			}
			docs[i] = sdl
			return nil
		})
	}
	_ = g.Wait() // failures are collected in errs
	if err := firstFailure(errs); err != nil {
		return Supergraph{}, err
	}

	var b strings.Builder
	names := make([]string, 0, len(endpoints))
	for i, ep := range endpoints {
		names = append(names, ep.Name)
		fmt.Fprintf(&b, "# subgraph: %s\n%s\n", ep.Name, strings.TrimSpace(docs[i]))
		if i < len(endpoints)-1 {
			b.WriteString("\n")
		}
	}

	return Supergraph{
		SDL:        b.String(),
		Subgraphs:  names,
		ComposedAt: c.now(),
	}, nil
}

// firstFailure prefers the first fatal error in configuration order, then
// the first connectivity error.
func firstFailure(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !IsConnectivityError(err) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// transientStatus reports 3xx/4xx replies a restarting or throttled
// subgraph sends.
func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return false
}

func (c *SDLComposer) fetch(ctx context.Context, ep domain.ServiceEndpoint) (string, error) {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewBufferString(sdlQuery))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrInvalidSubgraph, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 500, transientStatus(resp.StatusCode):
		return "", fmt.Errorf("%w: status %d", ErrConnectivity, resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: status %d", ErrInvalidSubgraph, resp.StatusCode)
	}

	var out sdlResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSDLResponse)).Decode(&out); err != nil {
		// Not JSON at all: something in front of the subgraph answered.
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("%w: non-json response: %v", ErrConnectivity, err)
		}
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrInvalidSubgraph, err)
	}
	if len(out.Errors) > 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidSubgraph, out.Errors[0].Message)
	}
	if out.Data == nil || out.Data.Service == nil || strings.TrimSpace(out.Data.Service.SDL) == "" {
		return "", fmt.Errorf("%w: empty sdl", ErrInvalidSubgraph)
	}
	return out.Data.Service.SDL, nil
}
