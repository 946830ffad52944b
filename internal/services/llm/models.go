package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ListModels returns the model identifiers offered by the endpoint. Ollama is
// queried through its native /api/tags listing.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	endpoint, err := c.modelsEndpoint()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("llm models: new request: %w", err)
	}
	c.applyHeaders(req)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var names []string
	if c.cfg.Provider == ProviderOllama {
		var payload struct {
			Models []struct {
				Name string `json:"name"`
			} `json:"models"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("llm models: decode response: %w", err)
		}
		for _, m := range payload.Models {
			names = append(names, m.Name)
		}
	} else {
		var payload struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("llm models: decode response: %w", err)
		}
		for _, m := range payload.Data {
			names = append(names, m.ID)
		}
	}

	out := names[:0]
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) modelsEndpoint() (string, error) {
	if c.cfg.Provider == ProviderOllama {
		host := strings.TrimSuffix(c.cfg.BaseURL, "/v1")
		endpoint, err := url.JoinPath(host, "api", "tags")
		if err != nil {
			return "", fmt.Errorf("llm models: build url: %w", err)
		}
		return endpoint, nil
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models")
	if err != nil {
		return "", fmt.Errorf("llm models: build url: %w", err)
	}
	return endpoint, nil
}
