// Package backend talks to the external player/prompt service. Every call
// is best-effort from the game's perspective: failures degrade prompt
// supply or skip persistence, they never touch room state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/promptparty/server/internal/game"
)

const cannotGenerate = "Cannot generate suggestion"

type Client struct {
	BaseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:7071/api"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 20 * time.Second}}
}

type statusReply struct {
	Result bool   `json:"result"`
	Msg    string `json:"msg"`
}

// RegisterPlayer creates an account with the player backend.
func (c *Client) RegisterPlayer(ctx context.Context, username, password string) (bool, string, error) {
	var out statusReply
	err := c.do(ctx, http.MethodPost, "/player/register", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return false, "", err
	}
	return out.Result, out.Msg, nil
}

// LoginPlayer verifies credentials with the player backend.
func (c *Client) LoginPlayer(ctx context.Context, username, password string) (bool, string, error) {
	var out statusReply
	err := c.do(ctx, http.MethodPost, "/player/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return false, "", err
	}
	return out.Result, out.Msg, nil
}

// CreatePrompt stores a player-authored prompt.
func (c *Client) CreatePrompt(ctx context.Context, author, text string) (string, error) {
	var out struct {
		statusReply
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/prompt/create", map[string]string{
		"username": author,
		"text":     text,
	}, &out)
	if err != nil {
		return "", err
	}
	if !out.Result {
		return "", fmt.Errorf("prompt not stored: %s", out.Msg)
	}
	return out.ID, nil
}

// GetPrompts fetches previously stored prompts authored by the given
// players in the given language.
func (c *Client) GetPrompts(ctx context.Context, authors []string, language string) ([]game.StoredPrompt, error) {
	var out []game.StoredPrompt
	err := c.do(ctx, http.MethodPost, "/utils/get", map[string]any{
		"players":  authors,
		"language": language,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SuggestPrompt asks the suggestion service for a freshly generated
// prompt. Returns game.ErrCannotGenerate when the service gives up.
func (c *Client) SuggestPrompt(ctx context.Context, topic string) (string, error) {
	var out struct {
		Suggestion string `json:"suggestion"`
	}
	err := c.do(ctx, http.MethodPost, "/prompt/suggest", map[string]string{
		"keyword": topic,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Suggestion == "" || out.Suggestion == cannotGenerate {
		return "", game.ErrCannotGenerate
	}
	return out.Suggestion, nil
}

// EditPlayer adds to a player's games-played and score counters.
func (c *Client) EditPlayer(ctx context.Context, username string, gamesPlayedDelta, scoreDelta int) error {
	var out statusReply
	err := c.do(ctx, http.MethodPut, "/player/update", map[string]any{
		"username":            username,
		"add_to_games_played": gamesPlayedDelta,
		"add_to_score":        scoreDelta,
	}, &out)
	if err != nil {
		return err
	}
	if !out.Result {
		return errors.New(out.Msg)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("backend status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
