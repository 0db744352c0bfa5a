// Package deepseek talks to OpenAI-compatible chat completion endpoints such as DeepSeek.
package deepseek

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/utils"
)

const (
	ProviderName = "deepseek"

	defaultBaseURL   = "https://api.deepseek.com"
	defaultModel     = "deepseek-chat"
	defaultTimeout   = 90 * time.Second
	userAgent        = "spigell/resume-screener"
	contentType      = "application/json"
	acceptEncoding   = "gzip"
	completionsPath  = "/chat/completions"
	maxErrorBodySize = 512
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("bad status: %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Config holds the endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	token      string
	baseURL    string
	model      string
	limiter    *rate.Limiter
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model          string            `json:"model"`
	Messages       []message         `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// New creates a client. limiter may be nil.
func New(cfg Config, logger *zap.Logger, limiter *rate.Limiter) (*Client, error) {
	token := strings.TrimSpace(cfg.APIKey)
	if token == "" {
		return nil, errors.New("deepseek api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:      token,
		baseURL:    baseURL,
		model:      model,
		limiter:    limiter,
		logger:     logger,
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// GenerateContent posts a chat completion and returns the first choice's content.
func (c *Client) GenerateContent(ctx context.Context, req ai.Request) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", errors.New("prompt must not be empty")
	}

	body := completionRequest{
		Model:       c.model,
		Temperature: req.Temperature,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: system})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: req.Message})
	if req.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	var resp completionResponse
	if err := c.postJSON(ctx, c.baseURL+completionsPath, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("completion returned empty content")
	}

	c.logger.Debug("completion usage",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", resp.Choices[0].FinishReason),
	)

	return content, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, target any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	reqID := uuid.NewString()
	start := time.Now()
	c.logger.Debug("make request",
		zap.String("req_id", reqID),
		zap.String("url", req.URL.String()),
		zap.Int("content_length", len(data)),
	)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	c.logger.Debug("got response",
		zap.String("req_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode, Body: utils.TruncateForLog(string(raw), maxErrorBodySize)}
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	return req
}
