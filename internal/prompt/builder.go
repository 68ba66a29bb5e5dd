package prompt

import (
	"fmt"
	"strings"

	"github.com/Devifyo/lumina/internal/domain"
)

// OutputHint 对输出图片格式的要求
type OutputHint string

const (
	// OutputHintAny 不限制输出格式
	OutputHintAny OutputHint = "any"
	// OutputHintAlpha 必须是带真实 alpha 通道的格式（PNG）
	OutputHintAlpha OutputHint = "alpha"
)

// Instruction 发送给后端的完整指令
type Instruction struct {
	Text       string
	OutputHint OutputHint
}

// RequiresAlpha 输出是否必须带透明通道
func (i Instruction) RequiresAlpha() bool {
	return i.OutputHint == OutputHintAlpha
}

// Build 根据编辑模式、可选文本和可选点选坐标生成指令。
// 纯函数：相同输入永远得到相同输出。输入是否齐全由调用方（editor）负责校验。
func Build(mode domain.EditMode, text string, sel *domain.Selection) Instruction {
	text = strings.TrimSpace(text)

	switch mode {
	case domain.ModeRemoveBackground:
		return Instruction{Text: backgroundRemoval(), OutputHint: OutputHintAlpha}
	case domain.ModeRemoveObject:
		return Instruction{Text: objectRemoval(text, sel), OutputHint: OutputHintAny}
	case domain.ModeEnhance:
		return Instruction{Text: enhance(), OutputHint: OutputHintAny}
	case domain.ModeBlurBackground:
		return Instruction{Text: blurBackground(sel), OutputHint: OutputHintAny}
	default:
		return Instruction{Text: customPrompt(text), OutputHint: OutputHintAny}
	}
}

func backgroundRemoval() string {
	lines := []string{
		"ACT AS AN ALPHA-CHANNEL EXTRACTION ENGINE.",
		"Task: isolate the primary subject on a transparent canvas.",
		"Instructions:",
		"1. Identify the foreground subject(s) with maximum precision.",
		"2. Remove every background element: sky, ground, walls and distant objects.",
		"3. The output MUST contain a real alpha channel; every non-subject pixel has alpha 0.",
		"4. Do NOT paint a placeholder background (no white, black, grey or checkerboard fill).",
		"5. Keep subject edges clean and anti-aliased with no background colour bleeding.",
		"Output format: transparent PNG only.",
	}
	return strings.Join(lines, "\n")
}

func objectRemoval(text string, sel *domain.Selection) string {
	var target string
	if sel != nil {
		target = fmt.Sprintf("STRICT TARGET: erase the object located at normalized coordinates %s.", sel.String())
	} else {
		target = "TARGET DESCRIPTION: \"" + text + "\"."
	}

	lines := []string{
		"ACT AS AN INPAINTING SPECIALIST.",
		"Task: seamless object erasure and scene reconstruction.",
		"Context: " + target,
		"Instructions:",
		"1. Remove the target object completely, including its shadows, reflections and related artifacts.",
		"2. Fill the void by synthesizing background texture, pattern and lighting from the surrounding area.",
		"3. Keep the reconstruction consistent with the scene's perspective and depth.",
		"4. The result must read as one cohesive photograph with no trace of the object.",
		"Return only the edited image.",
	}
	return strings.Join(lines, "\n")
}

func enhance() string {
	lines := []string{
		"ACT AS A PROFESSIONAL PHOTO EDITOR.",
		"Task: detail and tonal enhancement.",
		"Instructions:",
		"1. Increase local contrast and sharpness while suppressing digital noise.",
		"2. Optimize colour balance, saturation and dynamic range without oversaturating.",
		"3. Repair compression artifacts and restore fine micro-texture.",
		"4. Keep the framing, content and identity of the photo unchanged.",
		"Return only the enhanced image.",
	}
	return strings.Join(lines, "\n")
}

func blurBackground(sel *domain.Selection) string {
	focus := "AUTO-FOCUS: detect the most prominent foreground subject and keep it in focus."
	if sel != nil {
		focus = fmt.Sprintf("FOCUS ANCHOR: keep the subject at normalized coordinates %s razor-sharp.", sel.String())
	}

	lines := []string{
		"ACT AS A CINEMATIC LENS SIMULATOR.",
		"Task: depth-aware background blur (portrait bokeh).",
		focus,
		"Instructions:",
		"1. Apply a progressive blur that grows with distance behind the subject.",
		"2. Use a natural falloff similar to a fast f/1.4 prime lens.",
		"3. Mask subject edges precisely so hair and fine detail stay sharp.",
		"Return only the edited image.",
	}
	return strings.Join(lines, "\n")
}

func customPrompt(text string) string {
	lines := []string{
		"Task: guided image transformation.",
		"User request: \"" + text + "\".",
		"Preserve the composition, perspective and identity of the source while applying the requested change realistically.",
		"Return only the resulting image.",
	}
	return strings.Join(lines, "\n")
}
