package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ResultMIMEType 后端返回的图片统一按 PNG 处理
const ResultMIMEType = "image/png"

// ErrInvalidDataURI data URI 格式不正确
var ErrInvalidDataURI = errors.New("invalid data URI")

// ImageAsset 会话中流转的图片：base64 data URI + MIME 类型
type ImageAsset struct {
	DataURI  string `json:"data_uri" yaml:"-"`
	MIMEType string `json:"mime_type" yaml:"mime_type"`
}

// NewImageAsset 由原始字节构造 data URI 形式的图片
func NewImageAsset(data []byte, mimeType string) ImageAsset {
	return ImageAsset{
		DataURI:  BuildDataURI(mimeType, base64.StdEncoding.EncodeToString(data)),
		MIMEType: mimeType,
	}
}

// IsZero 是否为空图片
func (a ImageAsset) IsZero() bool {
	return a.DataURI == ""
}

// Payload 去掉 data URI 前缀，返回 base64 数据部分
func (a ImageAsset) Payload() (string, error) {
	_, payload, err := ParseDataURI(a.DataURI)
	return payload, err
}

// Bytes 解码后的图片字节
func (a ImageAsset) Bytes() ([]byte, error) {
	payload, err := a.Payload()
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return data, nil
}

// BuildDataURI 拼接 data:<mime>;base64,<payload>
func BuildDataURI(mimeType, payload string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, payload)
}

// ParseDataURI 拆分 data URI，返回 MIME 类型和 base64 数据
func ParseDataURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || payload == "" {
		return "", "", ErrInvalidDataURI
	}
	header = strings.TrimPrefix(header, "data:")
	if !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	return strings.TrimSuffix(header, ";base64"), payload, nil
}
