package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/utils"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// 默认请求超时时间
const defaultGenAITimeout = 60 * time.Second

// Client Gemini 图片编辑后端
type Client struct {
	models  generator
	timeout time.Duration
	limiter *rate.Limiter
}

// generator genai.Models 中用到的部分，测试时可替换
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config Gemini 客户端配置
type Config struct {
	APIKey  string        // API Key
	BaseURL string        // 自定义 Base URL，如果为空则使用默认值
	Timeout time.Duration // 单次请求超时时间
	// RatePerMinute 每分钟最多请求次数，0 表示不限制
	RatePerMinute int
}

// NewClient 创建新的 Gemini 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	// 如果提供了自定义 Base URL，设置 HTTPOptions
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newClient(client.Models, cfg.Timeout, cfg.RatePerMinute), nil
}

// NewClientFromConfig 从应用配置创建 Gemini 客户端
func NewClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:        cfg.GenAIAPIKey,
		BaseURL:       cfg.GenAIBaseURL,
		Timeout:       cfg.GenAITimeout(),
		RatePerMinute: cfg.GenAIRateLimitPerMinute,
	})
}

func newClient(models generator, timeout time.Duration, perMinute int) *Client {
	if timeout <= 0 {
		timeout = defaultGenAITimeout
	}
	c := &Client{
		models:  models,
		timeout: timeout,
	}
	if perMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return c
}

// EditImage 把图片和指令发给指定模型，取回第一张内联图片
func (c *Client) EditImage(ctx context.Context, model string, req Request) (*Output, error) {
	log := common.WithFields(map[string]interface{}{
		"model":        model,
		"mime_type":    req.MIMEType,
		"size":         len(req.Image),
		"aspect_ratio": req.AspectRatio,
	})
	log.Debug("Starting image editing")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.EditError{
				Kind:    domain.KindSynthesis,
				Message: fmt.Sprintf("rate limiter: %v", err),
				Model:   model,
				Err:     err,
			}
		}
	}

	// 为本次请求设置超时时间，避免无休止等待
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{
		{
			InlineData: &genai.Blob{
				Data:     req.Image,
				MIMEType: req.MIMEType,
			},
		},
		{Text: req.Instruction},
	}

	start := time.Now()
	result, err := c.models.GenerateContent(ctx, model, []*genai.Content{
		{Role: "user", Parts: parts},
	}, buildConfig(req.AspectRatio))
	if err != nil {
		editErr := Classify(model, err)
		log.WithError(err).WithField("kind", editErr.Kind).Warn("Gemini API call failed")
		return nil, editErr
	}

	out := extractImage(result)
	if out == nil || len(out.Data) == 0 {
		msg := "no image data found in response"
		if out != nil && out.Text != "" {
			msg = fmt.Sprintf("%s (model said: %s)", msg, utils.TruncateForLog(out.Text, 200))
		}
		log.Warn("No image data found in Gemini response")
		return nil, &domain.EditError{Kind: domain.KindSoftFailure, Message: msg, Model: model}
	}

	log.WithFields(map[string]interface{}{
		"result_mime": out.MIMEType,
		"result_size": len(out.Data),
		"duration":    time.Since(start).String(),
	}).Debug("Image edited successfully")

	return out, nil
}

// buildConfig 输出图片和文字两种模态；比例为空时不传 ImageConfig，后端保持原图比例
func buildConfig(aspectRatio string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if aspectRatio != "" {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: aspectRatio}
	}
	return config
}

// extractImage 从第一个候选中取第一张内联图片，并收集文字部分
func extractImage(result *genai.GenerateContentResponse) *Output {
	if result == nil || len(result.Candidates) == 0 {
		return nil
	}
	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil
	}

	out := &Output{}
	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && out.Data == nil {
			out.Data = part.InlineData.Data
			out.MIMEType = part.InlineData.MIMEType
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	return out
}
