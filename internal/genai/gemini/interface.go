package gemini

import "context"

// ImageEditor 图片编辑后端：一张图 + 一条指令，返回一张图
type ImageEditor interface {
	// EditImage 使用指定模型执行一次编辑。失败时返回 *domain.EditError
	EditImage(ctx context.Context, model string, req Request) (*Output, error)
}

// Request 单次后端调用的输入
type Request struct {
	Image       []byte
	MIMEType    string
	Instruction string
	// AspectRatio 输出比例，例如 1:1；为空表示保持原图比例
	AspectRatio string
}

// Output 后端返回的第一张内联图片
type Output struct {
	Data     []byte
	MIMEType string
	// Text 模型附带的文字说明（可能为空）
	Text string
}
