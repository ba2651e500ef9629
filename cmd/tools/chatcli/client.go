package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
)

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

func (c *apiClient) ListExperts(ctx context.Context) ([]expert.Expert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/experts", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list experts: %w", err)
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    []expert.Expert `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode experts: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("list experts: %s (status %d)", env.Error, resp.StatusCode)
	}
	return env.Data, nil
}

// Ask posts one conversation to /api/chat and returns the answer text.
func (c *apiClient) Ask(ctx context.Context, botID string, messages []chat.Message) (string, error) {
	body, err := json.Marshal(chat.Request{BotID: botID, Messages: messages})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ask %s: %w", botID, err)
	}
	defer resp.Body.Close()

	var out struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Text != "" {
			return "", fmt.Errorf("%s: %s", out.Error, out.Text)
		}
		return "", fmt.Errorf("%s (status %d)", out.Error, resp.StatusCode)
	}
	return out.Text, nil
}
