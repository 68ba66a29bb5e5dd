package domain

import (
	"fmt"
	"strings"
)

// EditMode 支持的编辑操作
type EditMode string

const (
	ModeRemoveBackground EditMode = "REMOVE_BACKGROUND"
	ModeRemoveObject     EditMode = "REMOVE_OBJECT"
	ModeEnhance          EditMode = "ENHANCE"
	ModeBlurBackground   EditMode = "BLUR_BACKGROUND"
	ModeCustomPrompt     EditMode = "CUSTOM_PROMPT"
)

// Modes 全部编辑模式，顺序即界面展示顺序
var Modes = []EditMode{
	ModeRemoveBackground,
	ModeRemoveObject,
	ModeEnhance,
	ModeBlurBackground,
	ModeCustomPrompt,
}

// ParseEditMode 解析用户输入的模式名（不区分大小写，允许 - 和空格）
func ParseEditMode(s string) (EditMode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	for _, m := range Modes {
		if string(m) == normalized {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported edit mode: %q", s)
}

// RequiresText 该模式是否必须提供文本
func (m EditMode) RequiresText() bool {
	return m == ModeCustomPrompt
}

// UsesSelection 该模式是否会使用点选坐标
func (m EditMode) UsesSelection() bool {
	return m == ModeRemoveObject || m == ModeBlurBackground
}

// HistoryLabel 历史记录中展示的名称
func (m EditMode) HistoryLabel(text string, sel *Selection) string {
	switch m {
	case ModeRemoveBackground:
		return "Alpha Extraction"
	case ModeEnhance:
		return "Visual Polish"
	case ModeBlurBackground:
		return "Depth Focus"
	case ModeRemoveObject:
		if sel != nil {
			return "Smart Erasure"
		}
	}
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	return "Neural Transformation"
}
