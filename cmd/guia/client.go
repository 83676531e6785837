package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/turn"
)

// conversation is what the chat and ask commands need, in-process or over HTTP.
type conversation interface {
	Greet(ctx context.Context, sessionID string) (*turn.Result, error)
	ProcessTurn(ctx context.Context, sessionID, utterance string) (*turn.Result, error)
}

// httpClient talks to a running guia server.
type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(serverURL string) *httpClient {
	return &httpClient{
		baseURL: strings.TrimRight(serverURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type turnPayload struct {
	*turn.Result
	Failure string `json:"failure,omitempty"`
}

func (c *httpClient) Greet(ctx context.Context, sessionID string) (*turn.Result, error) {
	return c.postTurn(ctx, c.sessionURL(sessionID, "greeting"), nil)
}

func (c *httpClient) ProcessTurn(ctx context.Context, sessionID, utterance string) (*turn.Result, error) {
	return c.postTurn(ctx, c.sessionURL(sessionID, "turns"), map[string]string{"message": utterance})
}

func (c *httpClient) ListTopics(ctx context.Context) ([]models.Topic, error) {
	var out struct {
		Topics []models.Topic `json:"topics"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/v1/topics", nil, &out); err != nil {
		return nil, err
	}
	return out.Topics, nil
}

func (c *httpClient) sessionURL(sessionID, action string) string {
	return fmt.Sprintf("%s/api/v1/sessions/%s/%s", c.baseURL, url.PathEscape(sessionID), action)
}

func (c *httpClient) postTurn(ctx context.Context, u string, body any) (*turn.Result, error) {
	var p turnPayload
	if err := c.do(ctx, http.MethodPost, u, body, &p); err != nil {
		return nil, err
	}
	if p.Result == nil {
		return nil, errors.New("empty response from server")
	}
	if p.Failure != "" {
		p.Result.Failure = errors.New(p.Failure)
	}
	return p.Result, nil
}

func (c *httpClient) do(ctx context.Context, method, u string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
