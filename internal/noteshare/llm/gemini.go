package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
	"github.com/go-resty/resty/v2"
)

// GeminiOptions Gemini 客户端配置
type GeminiOptions struct {
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	Temperature       float64
	MaxTokens         int
	SystemInstruction string
}

// GeminiClient 通过 REST 调用 Gemini generateContent
type GeminiClient struct {
	client *resty.Client
	opts   GeminiOptions
	logger *logx.Logger
}

// NewGeminiClient 创建Gemini客户端
func NewGeminiClient(opts GeminiOptions, logger *logx.Logger) *GeminiClient {
	if opts.Model == "" {
		opts.Model = "gemini-flash-latest"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.SystemInstruction == "" {
		opts.SystemInstruction = SystemInstruction
	}
	if logger == nil {
		logger = logx.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", opts.APIKey)

	return &GeminiClient{client: client, opts: opts, logger: logger}
}

// Summarize 生成摘要
func (gc *GeminiClient) Summarize(ctx context.Context, text string) (string, error) {
	start := time.Now()

	resp, err := gc.client.R().
		SetContext(ctx).
		SetBody(gc.buildRequest(text)).
		SetResult(&GenerateContentResponse{}).
		SetError(&apiErrorEnvelope{}).
		Post(gc.path("generateContent"))
	if err != nil {
		return "", &Error{Kind: FailureGeneric, Message: "request failed", Err: err}
	}

	if resp.IsError() {
		env, _ := resp.Error().(*apiErrorEnvelope)
		lerr := classify(resp.StatusCode(), env, resp.String())
		gc.logger.Warn(ctx, "gemini.generate.failed",
			logx.KV("model", gc.opts.Model),
			logx.KV("status", resp.StatusCode()),
			logx.KV("kind", string(lerr.Kind)))
		return "", lerr
	}

	out, _ := resp.Result().(*GenerateContentResponse)
	summary := ""
	if out != nil {
		summary = strings.TrimSpace(out.Text())
	}
	if summary == "" {
		return "", &Error{Kind: FailureEmptyResult, StatusCode: resp.StatusCode(), Message: "empty response"}
	}

	gc.logger.Debug(ctx, "gemini.generate.done",
		logx.KV("model", gc.opts.Model),
		logx.KV("latency", time.Since(start)))
	return summary, nil
}

// SummarizeStream 流式生成摘要（SSE）
func (gc *GeminiClient) SummarizeStream(ctx context.Context, text string, onChunk StreamChunkHandler) error {
	resp, err := gc.client.R().
		SetContext(ctx).
		SetBody(gc.buildRequest(text)).
		SetQueryParam("alt", "sse").
		SetDoNotParseResponse(true).
		Post(gc.path("streamGenerateContent"))
	if err != nil {
		return &Error{Kind: FailureGeneric, Message: "request failed", Err: err}
	}
	body := resp.RawBody()
	if body == nil {
		return &Error{Kind: FailureGeneric, StatusCode: resp.StatusCode(), Message: "missing response body"}
	}
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		var env apiErrorEnvelope
		_ = json.Unmarshal(raw, &env)
		return classify(resp.StatusCode(), &env, string(raw))
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	emitted := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var chunk GenerateContentResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return &Error{Kind: FailureGeneric, Message: "decode stream chunk", Err: err}
		}
		if t := chunk.Text(); t != "" {
			if err := onChunk(ctx, t); err != nil {
				return err
			}
			emitted++
		}
	}
	if err := scanner.Err(); err != nil {
		return &Error{Kind: FailureGeneric, Message: "read stream", Err: err}
	}
	if emitted == 0 {
		return &Error{Kind: FailureEmptyResult, StatusCode: resp.StatusCode(), Message: "empty response"}
	}
	return nil
}

func (gc *GeminiClient) path(method string) string {
	return fmt.Sprintf("/models/%s:%s", gc.opts.Model, method)
}

func (gc *GeminiClient) buildRequest(text string) generateRequest {
	req := generateRequest{
		SystemInstruction: &Content{Parts: []Part{{Text: gc.opts.SystemInstruction}}},
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: BuildPrompt(text)}}},
		},
		GenerationConfig: &GenerationConfig{
			Temperature:     gc.opts.Temperature,
			MaxOutputTokens: gc.opts.MaxTokens,
		},
	}
	return req
}

// classify 优先使用结构化信号（details.reason、HTTP 状态码、error.status），最后才匹配消息文本
func classify(statusCode int, env *apiErrorEnvelope, raw string) *Error {
	e := &Error{Kind: FailureGeneric, StatusCode: statusCode}
	var apiErr apiError
	if env != nil {
		apiErr = env.Error
	}
	e.Message = apiErr.Message
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}

	for _, d := range apiErr.Details {
		switch d.Reason {
		case "API_KEY_INVALID", "API_KEY_EXPIRED", "API_KEY_SERVICE_BLOCKED", "ACCESS_TOKEN_TYPE_UNSUPPORTED":
			e.Kind = FailureAuth
			return e
		case "RATE_LIMIT_EXCEEDED", "RESOURCE_EXHAUSTED":
			e.Kind = FailureRateLimited
			return e
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = FailureAuth
		return e
	case http.StatusTooManyRequests:
		e.Kind = FailureRateLimited
		return e
	}

	switch apiErr.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		e.Kind = FailureAuth
		return e
	case "RESOURCE_EXHAUSTED":
		e.Kind = FailureRateLimited
		return e
	}

	msg := apiErr.Message
	if msg == "" {
		msg = raw
	}
	e.Kind = ClassifyMessage(msg)
	return e
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// 数据结构

type generateRequest struct {
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Contents          []Content         `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// GenerationConfig 生成内容配置
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// GenerateContentResponse 生成内容响应
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	Usage          Usage           `json:"usageMetadata"`
}

// Text joins the text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Candidate 候选响应
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// Content 内容
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part 内容部分
type Part struct {
	Text string `json:"text"`
}

// PromptFeedback 安全拦截信息
type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

// Usage 使用情况
type Usage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type apiErrorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Details []struct {
		Type   string `json:"@type"`
		Reason string `json:"reason"`
	} `json:"details"`
}
