package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TaskGenerator 外部文本生成服务, 根据自然语言描述返回任务列表文本
type TaskGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrGeneratorNotConfigured 未配置生成服务地址
var ErrGeneratorNotConfigured = errors.New("task generator is not configured")

// generatorInstruction 发送给生成服务的固定指令
const generatorInstruction = `Split the following process description into tasks. ` +
	`Answer with a JSON array only. Each item must have the fields ` +
	`"title" (string), "description" (string), "priority" ("high", "medium" or "low") ` +
	`and "due_in_days" (integer, optional).`

// HTTPGenerator 通过 HTTP 调用的生成服务
type HTTPGenerator struct {
	url        string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewHTTPGenerator 创建 HTTP 生成服务客户端
func NewHTTPGenerator(url, apiKey string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGenerator{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
}

type generateRequest struct {
	Instruction string `json:"instruction"`
	Prompt      string `json:"prompt"`
}

type generateResponse struct {
	Output string `json:"output"`
}

// retryableError 可重试的错误(网络错误或 5xx)
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Generate 调用生成服务, 网络错误和 5xx 响应按指数退避重试
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.url == "" {
		return "", ErrGeneratorNotConfigured
	}

	body, err := json.Marshal(generateRequest{Instruction: generatorInstruction, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generator request: %w", err)
	}

	backoff := g.backoff
	for attempt := 1; ; attempt++ {
		output, err := g.call(ctx, body)
		if err == nil {
			return output, nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) || attempt >= g.maxRetries {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2 // 指数退避
	}
}

func (g *HTTPGenerator) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("generator request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("failed to read generator response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("generator returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode generator response: %w", err)
	}
	return out.Output, nil
}
