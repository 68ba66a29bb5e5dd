package editor

import (
	"context"
	"strings"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/genai/gemini"
	"github.com/Devifyo/lumina/internal/prompt"
)

// Request 一次编辑请求
type Request struct {
	Image     domain.ImageAsset
	Mode      domain.EditMode
	Text      string
	Selection *domain.Selection
}

// Outcome 编辑成功的结果
type Outcome struct {
	// Asset 编辑后的图片，统一为 image/png
	Asset domain.ImageAsset
	// Model 最终产出结果的模型
	Model string
	// Attempts 实际调用后端的次数（1 或 2）
	Attempts int
	// Note 模型附带的文字说明
	Note string
}

// Options 编辑器配置
type Options struct {
	PrimaryModel  string
	FallbackModel string
	// AspectRatio 输出比例，为空表示保持原图比例
	AspectRatio string
}

// Editor 编辑请求编排：校验、构造指令、调用后端，失败时切换备用模型重试一次
type Editor struct {
	backend gemini.ImageEditor
	opts    Options
}

// New 创建编辑器
func New(backend gemini.ImageEditor, opts Options) *Editor {
	return &Editor{backend: backend, opts: opts}
}

// NewFromConfig 从应用配置创建编辑器
func NewFromConfig(backend gemini.ImageEditor, cfg *common.Config) *Editor {
	opts := Options{
		PrimaryModel:  cfg.PrimaryModel,
		FallbackModel: cfg.FallbackModel,
		AspectRatio:   cfg.AspectRatio,
	}
	if cfg.PreserveAspectRatio() {
		opts.AspectRatio = ""
	}
	return New(backend, opts)
}

// Validate 检查请求是否可以发往后端
func Validate(req Request) error {
	if req.Image.IsZero() {
		return domain.NewValidationError("no image to edit")
	}
	if req.Selection != nil {
		if err := req.Selection.Validate(); err != nil {
			return domain.NewValidationError("%v", err)
		}
	}
	text := strings.TrimSpace(req.Text)
	switch req.Mode {
	case domain.ModeRemoveObject:
		if text == "" && req.Selection == nil {
			return domain.NewValidationError("object removal needs a description or a picked target")
		}
	case domain.ModeCustomPrompt, domain.ModeRemoveBackground, domain.ModeEnhance, domain.ModeBlurBackground:
	default:
		return domain.NewValidationError("unsupported edit mode %q", req.Mode)
	}
	if req.Mode.RequiresText() && text == "" {
		return domain.NewValidationError("custom prompt must not be empty")
	}
	return nil
}

// Submit 执行一次编辑。后端最多调用两次：主模型一次，可重试的失败再用备用模型一次。
// 两次都失败时返回备用模型的错误。返回的错误总是 *domain.EditError。
func (e *Editor) Submit(ctx context.Context, req Request) (*Outcome, error) {
	log := common.Component("editor").WithField("mode", req.Mode)

	if err := Validate(req); err != nil {
		log.WithError(err).Debug("Edit request rejected")
		return nil, err
	}

	data, err := req.Image.Bytes()
	if err != nil {
		return nil, domain.NewValidationError("image is not a valid data URI: %v", err)
	}
	mimeType := req.Image.MIMEType
	if mimeType == "" {
		mimeType, _, _ = domain.ParseDataURI(req.Image.DataURI)
	}

	instruction := prompt.Build(req.Mode, req.Text, req.Selection)
	backendReq := gemini.Request{
		Image:       data,
		MIMEType:    mimeType,
		Instruction: instruction.Text,
		AspectRatio: e.opts.AspectRatio,
	}

	log.WithFields(map[string]interface{}{
		"model":          e.opts.PrimaryModel,
		"mime_type":      mimeType,
		"size":           len(data),
		"requires_alpha": instruction.RequiresAlpha(),
	}).Info("Submitting edit")

	out, primaryErr := e.call(ctx, e.opts.PrimaryModel, backendReq)
	if primaryErr == nil {
		return e.outcome(out, e.opts.PrimaryModel, 1), nil
	}
	if !primaryErr.Retryable() || e.opts.FallbackModel == "" {
		log.WithError(primaryErr).WithField("kind", primaryErr.Kind).Error("Edit failed")
		return nil, primaryErr
	}

	log.WithFields(map[string]interface{}{
		"kind":     primaryErr.Kind,
		"primary":  e.opts.PrimaryModel,
		"fallback": e.opts.FallbackModel,
	}).Warn("Primary model failed, retrying with fallback model")

	out, fallbackErr := e.call(ctx, e.opts.FallbackModel, backendReq)
	if fallbackErr != nil {
		log.WithError(fallbackErr).WithField("kind", fallbackErr.Kind).Error("Fallback model failed")
		return nil, fallbackErr
	}
	return e.outcome(out, e.opts.FallbackModel, 2), nil
}

// call 调用一次后端，空结果视为 soft failure
func (e *Editor) call(ctx context.Context, model string, req gemini.Request) (*gemini.Output, *domain.EditError) {
	out, err := e.backend.EditImage(ctx, model, req)
	if err != nil {
		return nil, asEditError(model, err)
	}
	if out == nil || len(out.Data) == 0 {
		return nil, &domain.EditError{Kind: domain.KindSoftFailure, Message: "backend returned no image", Model: model}
	}
	return out, nil
}

func (e *Editor) outcome(out *gemini.Output, model string, attempts int) *Outcome {
	common.Component("editor").WithFields(map[string]interface{}{
		"model":    model,
		"attempts": attempts,
		"size":     len(out.Data),
	}).Info("Edit completed")

	return &Outcome{
		Asset:    domain.NewImageAsset(out.Data, domain.ResultMIMEType),
		Model:    model,
		Attempts: attempts,
		Note:     out.Text,
	}
}

// asEditError 后端约定返回 *domain.EditError，其他错误按 synthesis 处理
func asEditError(model string, err error) *domain.EditError {
	if editErr, ok := domain.AsEditError(err); ok {
		return editErr
	}
	return gemini.Classify(model, err)
}
