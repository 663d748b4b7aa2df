package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/threadrelay/internal/domain"
)

const daprAPITokenHeader = "dapr-api-token"

// DaprConfig configures the Dapr state store client.
type DaprConfig struct {
	BaseURL  string
	APIToken string
	Store    string
	Timeout  time.Duration
}

// DaprStore implements BindingStore over the Dapr state management HTTP API.
// Values are saved as JSON strings holding the thread id.
type DaprStore struct {
	baseURL string
	token   string
	store   string
	client  *http.Client
}

type daprStateItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewDapr creates a Dapr-backed binding store.
func NewDapr(cfg DaprConfig) (*DaprStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("dapr base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse dapr base url: %w", err)
	}
	if strings.TrimSpace(cfg.Store) == "" {
		return nil, fmt.Errorf("dapr state store name is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DaprStore{
		baseURL: base,
		token:   cfg.APIToken,
		store:   cfg.Store,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (s *DaprStore) stateURL(key string) string {
	u := s.baseURL + "/v1.0/state/" + url.PathEscape(s.store)
	if key != "" {
		u += "/" + url.PathEscape(key)
	}
	return u
}

func (s *DaprStore) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set(daprAPITokenHeader, s.token)
	}
	return s.client.Do(req)
}

// Get fetches the thread id stored under chatID.
func (s *DaprStore) Get(ctx context.Context, chatID domain.ChatID) ThreadLookup {
	threadID, err := s.getState(ctx, string(chatID))
	return classify(threadID, err)
}

func (s *DaprStore) getState(ctx context.Context, key string) (string, error) {
	resp, err := s.do(ctx, http.MethodGet, s.stateURL(key), nil)
	if err != nil {
		return "", unavailable("get state", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusNotFound:
		return "", ErrBindingNotFound
	case resp.StatusCode != http.StatusOK:
		return "", unavailable("get state", statusError(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", unavailable("read state", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", ErrBindingNotFound
	}

	var threadID string
	if err := json.Unmarshal(raw, &threadID); err != nil {
		return "", unavailable("decode state", err)
	}
	if threadID == "" {
		return "", ErrBindingNotFound
	}
	return threadID, nil
}

// Put saves the binding with a single-item bulk save request.
func (s *DaprStore) Put(ctx context.Context, chatID domain.ChatID, threadID string) error {
	payload, err := json.Marshal([]daprStateItem{{Key: string(chatID), Value: threadID}})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	resp, err := s.do(ctx, http.MethodPost, s.stateURL(""), bytes.NewReader(payload))
	if err != nil {
		return unavailable("save state", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return unavailable("save state", statusError(resp))
	}
	return nil
}

// Delete removes the binding for chatID.
func (s *DaprStore) Delete(ctx context.Context, chatID domain.ChatID) error {
	resp, err := s.do(ctx, http.MethodDelete, s.stateURL(string(chatID)), nil)
	if err != nil {
		return unavailable("delete state", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return unavailable("delete state", statusError(resp))
	}
	return nil
}

// Ping checks the sidecar health endpoint.
func (s *DaprStore) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, s.baseURL+"/v1.0/healthz", nil)
	if err != nil {
		return unavailable("dapr health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return unavailable("dapr health", statusError(resp))
	}
	return nil
}

// Close releases idle HTTP connections.
func (s *DaprStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
}

var _ BindingStore = (*DaprStore)(nil)
