// Package api is the client side of the collection server's REST API.
//
// Every request carries the Sesion header, a JSON document naming the
// country, system and environment, plus a bearer token once the user is
// authenticated. Transport failures are reported as ErrUnavailable or
// ErrUnauthorized; application failures as *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
)

const (
	pathRecordingsToday  = "/Grabacion/obtenerGrabacionesUsuarioHoy/"
	pathRegister         = "/Grabacion/registrarGrabacion"
	pathRegisterCountry  = "/Grabacion/registrarGrabacionPais"
	pathClientsForUser   = "/Cliente/obtenerClientesUsuario/"
	pathPing             = "/Salud/ping"
	maxErrorBodyLogBytes = 512
)

// Sesion is the value of the Sesion request header.
type Sesion struct {
	Pais     string `json:"Pais"`
	Sistema  string `json:"Sistema"`
	Ambiente string `json:"Ambiente"`
}

// TokenSource supplies the current bearer token ("" when signed out).
type TokenSource interface {
	Token() string
}

type Config struct {
	BaseURL string
	Sesion  Sesion
	// VariantCountries use the country registration endpoint.
	VariantCountries []string
	Timeout          time.Duration
}

type Client struct {
	base    string
	sesion  string
	tokens  TokenSource
	variant bool
	http    *http.Client
	logger  logging.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(cfg Config, tokens TokenSource, logger logging.Logger, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	sesion, err := json.Marshal(cfg.Sesion)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		sesion:  string(sesion),
		tokens:  tokens,
		variant: slices.Contains(cfg.VariantCountries, cfg.Sesion.Pais),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// Do sends req with the session headers set. Other packages that talk to
// the same server (audio storage) go through it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Sesion", c.sesion)
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if err := checkStatus(resp.StatusCode, raw); err != nil {
		c.logger.Warn(ctx, "api call failed", "method", method, "path", path,
			"status", resp.StatusCode, "body", truncate(raw, maxErrorBodyLogBytes))
		return err
	}

	if apiErr := ParseError(raw); apiErr != nil {
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func checkStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if apiErr := ParseError(body); apiErr != nil {
			return errors.Join(ErrUnauthorized, apiErr)
		}
		return ErrUnauthorized
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
	if apiErr := ParseError(body); apiErr != nil {
		return apiErr
	}
	return fmt.Errorf("unexpected status %d", status)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// list decodes either a bare JSON array or an object wrapping it in Datos.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Datos []T `json:"Datos"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		*l = wrapped.Datos
		return nil
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// RecordingsToday returns the recordings the server holds for userName
// for the current day, including rows the server flags with EsError.
func (c *Client) RecordingsToday(ctx context.Context, userName string) ([]models.Grabacion, error) {
	var out list[models.Grabacion]
	if err := c.call(ctx, http.MethodGet, pathRecordingsToday+url.PathEscape(userName), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClientsForUser returns the client catalog assigned to userName.
func (c *Client) ClientsForUser(ctx context.Context, userName string) ([]models.CatalogEntry, error) {
	var out list[models.CatalogEntry]
	if err := c.call(ctx, http.MethodGet, pathClientsForUser+url.PathEscape(userName), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, pathPing, nil, nil)
}

// UsesCountryEndpoint reports whether registrations go to the country
// variant endpoint.
func (c *Client) UsesCountryEndpoint() bool {
	return c.variant
}

// RegisterRecording submits one recording to the registration endpoint
// that applies to the configured country.
func (c *Client) RegisterRecording(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var (
		path string
		body any
	)
	if c.variant {
		path, body = pathRegisterCountry, req
	} else {
		path, body = pathRegister, req.RegisterBase
	}

	var out RegisterResponse
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
