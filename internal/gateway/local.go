package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// LocalClient talks to an Ollama-compatible model server on the local
// network. It sends no credentials.
type LocalClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewLocalClient(baseURL string) *LocalClient {
	return &LocalClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localRequest struct {
	Model    string         `json:"model"`
	Messages []localMessage `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  localOptions   `json:"options"`
}

type localOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type localResponse struct {
	Message         localMessage `json:"message"`
	DoneReason      string       `json:"done_reason"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
	Error           string       `json:"error"`
}

func (c *LocalClient) Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error) {
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	reqBody := localRequest{
		Model: opts.ModelID,
		Messages: []localMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Options: localOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	}
	if opts.JSON {
		reqBody.Format = "json"
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling local request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, "local", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, "local", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("local", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out localResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: local: decoding response: %v", ErrModelUnavailable, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: local: %s", ErrModelUnavailable, out.Error)
	}
	text := strings.TrimSpace(out.Message.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: local: empty completion (done_reason %q)", ErrModelRefusal, out.DoneReason)
	}
	return &Completion{
		Text:         text,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
	}, nil
}

// Ping checks that the server answers its model listing endpoint.
func (c *LocalClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, "local", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return statusError("local", resp.StatusCode, "")
	}
	return nil
}

// Pull asks the server to download a model and blocks until it is done.
func (c *LocalClient) Pull(ctx context.Context, model string) error {
	bodyBytes, _ := json.Marshal(map[string]any{"model": model, "stream": false})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, "local", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pulling %s: %w", model, statusError("local", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &status); err == nil && status.Error != "" {
		return fmt.Errorf("pulling %s: %s", model, status.Error)
	}
	return nil
}
