package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-notifier/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-notifier/internal/reconciler"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/response"
)

const recentPath = "/api/v1/chats/messages/recent"

// HTTPFetcher reads the recent-messages window from the chat service.
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPFetcher(cfg config.APIConfig) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

type recentEnvelope struct {
	Success bool                `json:"success"`
	Data    *recentData         `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

type recentData struct {
	Messages []reconciler.Message `json:"messages"`
}

// FetchRecent returns the caller's newest messages, newest first. Only a 401
// wraps reconciler.ErrUnauthenticated; a 403 is an ordinary failure.
func (f *HTTPFetcher) FetchRecent(ctx context.Context, limit int) ([]reconciler.Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+recentPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent messages: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env recentEnvelope
	decodeErr := json.Unmarshal(body, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("status %d%s: %w", resp.StatusCode, describe(env.Error), reconciler.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d%s", resp.StatusCode, describe(env.Error))
	case decodeErr != nil:
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	case !env.Success:
		return nil, fmt.Errorf("request failed%s", describe(env.Error))
	case env.Data == nil:
		return nil, nil
	}
	return env.Data.Messages, nil
}

func describe(info *response.ErrorInfo) string {
	if info == nil {
		return ""
	}
	return fmt.Sprintf(" (%s: %s)", info.Code, info.Message)
}
