package domain

import "fmt"

// Selection 用户在图片上点选的目标位置，坐标为相对于显示区域的归一化值 [0,1]
type Selection struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Validate 检查坐标是否落在 [0,1] 范围内
func (s Selection) Validate() error {
	if s.X < 0 || s.X > 1 || s.Y < 0 || s.Y > 1 {
		return fmt.Errorf("selection (%.4f, %.4f) is outside the image bounds", s.X, s.Y)
	}
	return nil
}

// String 保留四位小数，Prompt Builder 和日志都用这个格式
func (s Selection) String() string {
	return fmt.Sprintf("(X: %.4f, Y: %.4f)", s.X, s.Y)
}
