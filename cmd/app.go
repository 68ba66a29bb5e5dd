package cmd

import (
	"fmt"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/editor"
	"github.com/Devifyo/lumina/internal/genai/gemini"
)

// newEditor 根据配置组装后端和编辑器
func newEditor(cfg *common.Config) (*editor.Editor, error) {
	client, err := gemini.NewClientFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return editor.NewFromConfig(client, cfg), nil
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
