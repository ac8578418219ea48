package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/pkg/circuitbreaker"
	"github.com/ecotracker/backend/pkg/logger"
	"github.com/ecotracker/backend/pkg/retry"
	"github.com/ecotracker/backend/pkg/utils"
)

const (
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

var ErrEmptyResponse = errors.New("completion returned no choices")

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Cache stores recommendations keyed by prompt hash.
type Cache interface {
	GetRecommendation(ctx context.Context, key string) (string, bool, error)
	SetRecommendation(ctx context.Context, key, value string, ttl time.Duration) error
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	HTTPClient  *http.Client
}

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cache       Cache
	cacheTTL    time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NewClient builds a chat-completion client for any OpenAI-compatible
// endpoint. cache may be nil.
func NewClient(cfg Config, cache Cache) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		// Requests the service rejected as invalid would fail the same way
		// on a healthy upstream.
		IsFailure: func(err error) bool {
			return !retry.IsPermanent(err)
		},
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			metrics.CircuitState.WithLabelValues(name).Set(float64(to))
		},
		Logger: logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   cfg.RetryDelay,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("base_url", oc.BaseURL),
		zap.String("model", cfg.Model),
		zap.Bool("cache", cache != nil),
	)

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		cache:       cache,
		cacheTTL:    cfg.CacheTTL,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Complete sends the conversation and returns the first choice verbatim.
// Every failure wraps apperr.ErrRemoteService.
func (c *Client) Complete(parent context.Context, history []Message) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, len(history))
	for i, m := range history {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var result *CompletionResponse

	// The breaker sees the caller's context so that our own timeout still
	// counts as an upstream failure while a caller hanging up does not.
	err := c.cb.Execute(parent, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
				},
			)
			if err != nil {
				err = fmt.Errorf("failed to create completion: %w", err)
				if !retryable(err) {
					return retry.Permanent(err)
				}
				return err
			}

			if len(resp.Choices) == 0 {
				return ErrEmptyResponse
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("chat completion: %v: %w", err, apperr.ErrRemoteService)
	}

	metrics.LLMRequests.WithLabelValues("success").Inc()
	return result, nil
}

// CircuitStatus reports the upstream circuit breaker state, with the
// failure streak while it is still closed.
func (c *Client) CircuitStatus() string {
	state := c.cb.State()
	if n := c.cb.Counts().ConsecutiveFailures; state == circuitbreaker.StateClosed && n > 0 {
		return fmt.Sprintf("closed, %d consecutive failures", n)
	}
	return state.String()
}

// Recommend sends prompt as a single-turn conversation. Responses are
// cached by prompt when a cache is configured.
func (c *Client) Recommend(ctx context.Context, prompt string) (string, error) {
	key := utils.HashParts(c.model, prompt)

	if c.cache != nil {
		cached, ok, err := c.cache.GetRecommendation(ctx, key)
		if err != nil {
			logger.Warn("Recommendation cache lookup failed", zap.Error(err))
		} else if ok {
			metrics.CacheHits.WithLabelValues("recommendation").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("recommendation").Inc()
	}

	resp, err := c.Complete(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.SetRecommendation(ctx, key, resp.Content, c.cacheTTL); err != nil {
			logger.Warn("Failed to cache recommendation", zap.Error(err))
		}
	}

	logger.Info("Recommendation generated", zap.Int("response_length", len(resp.Content)))

	return resp.Content, nil
}

// Converse sends the whole history and returns the assistant's reply.
func (c *Client) Converse(ctx context.Context, history []Message) (string, error) {
	resp, err := c.Complete(ctx, history)
	if err != nil {
		return "", err
	}

	logger.Info("Conversation reply generated",
		zap.Int("turns", len(history)),
		zap.Int("response_length", len(resp.Content)),
	)

	return resp.Content, nil
}

// retryable reports whether a failed call is worth repeating. Client errors
// other than rate limiting will fail the same way again.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
