// Package auth obtains and caches the short-lived broker credential: a JWT
// from the identity provider plus the investor id the broker expects as the
// connection username.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/trandminh/quote-ingest/internal/observ"
)

var (
	// ErrMissingConfig means an endpoint URL or login is unset; no network
	// call is attempted.
	ErrMissingConfig = errors.New("missing authentication configuration")
	// ErrAuthFailed wraps any terminal failure of an authentication attempt.
	ErrAuthFailed = errors.New("authentication failed")
)

// Credential is the durable unit the connection manager consumes.
type Credential struct {
	Token      string    `bson:"token" json:"token"`
	InvestorID string    `bson:"investorId" json:"investorId"`
	ExpiresAt  time.Time `bson:"tokenExpiredAt" json:"tokenExpiredAt"`
}

// Store is the warm cache for the one credential row.
// Get returns (nil, nil) when nothing is stored yet.
type Store interface {
	Get(ctx context.Context) (*Credential, error)
	Put(ctx context.Context, cred *Credential) error
}

// Config carries the identity-provider endpoints and login.
type Config struct {
	AuthURL    string
	MeURL      string
	Username   string
	Password   string
	Timeout    time.Duration
	ExpirySkew time.Duration
}

// Service hands out valid credentials, deduplicating concurrent
// authentication attempts so at most one outbound sequence is in flight.
type Service struct {
	cfg    Config
	store  Store
	client *http.Client
	group  singleflight.Group
	now    func() time.Time
}

// NewService creates a credential service over the given store.
func NewService(cfg Config, store Store) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Credentials returns a credential valid for at least the configured skew.
// A stored credential short-circuits the network entirely; otherwise all
// concurrent callers share a single authenticate sequence and its outcome.
func (s *Service) Credentials(ctx context.Context) (*Credential, error) {
	stored, err := s.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stored credential: %w", err)
	}
	if stored != nil && s.valid(stored) {
		return stored, nil
	}

	v, err, shared := s.group.Do("credential", func() (any, error) {
		return s.authenticateAndSave(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		observ.IncCounter("auth_singleflight_shared_total", map[string]string{})
	}
	return v.(*Credential), nil
}

func (s *Service) valid(cred *Credential) bool {
	return cred.Token != "" && s.now().Before(cred.ExpiresAt.Add(-s.cfg.ExpirySkew))
}

func (s *Service) authenticateAndSave(ctx context.Context) (*Credential, error) {
	cred, err := s.authenticate(ctx)
	if err != nil {
		observ.Error("auth_failed", err, nil)
		return nil, err
	}
	if err := s.store.Put(ctx, cred); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	observ.Log("auth_credential_refreshed", map[string]any{
		"investor_id": cred.InvestorID,
		"expires_at":  cred.ExpiresAt,
	})
	return cred, nil
}

func (s *Service) authenticate(ctx context.Context) (*Credential, error) {
	if s.cfg.AuthURL == "" || s.cfg.MeURL == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		return nil, ErrMissingConfig
	}

	token, err := s.fetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	investorID, err := s.fetchInvestorID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	expiresAt, err := tokenExpiry(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	return &Credential{Token: token, InvestorID: investorID, ExpiresAt: expiresAt}, nil
}

func (s *Service) fetchToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": s.cfg.Username,
		"password": s.cfg.Password,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Token string `json:"token"`
	}
	if err := s.doJSON(req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("token not returned from auth endpoint")
	}
	return out.Token, nil
}

func (s *Service) fetchInvestorID(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.MeURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		InvestorID string `json:"investorId"`
	}
	if err := s.doJSON(req, &out); err != nil {
		return "", err
	}
	if out.InvestorID == "" {
		return "", errors.New("investor id not returned from me endpoint")
	}
	return out.InvestorID, nil
}

func (s *Service) doJSON(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// tokenExpiry pulls the exp claim out of the token without verifying the
// signature; the token is opaque to us beyond its lifetime.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("decode token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("decode token expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no expiration claim")
	}
	return exp.Time, nil
}
