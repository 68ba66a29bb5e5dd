package oss

import (
	"context"
	"io"
)

// OSSIface 对象存储客户端接口
type OSSIface interface {
	// UploadFile 上传文件，返回 bucket/key
	UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error)

	// GetSignedURL 获取带签名的临时访问 URL，expiresIn 单位为秒
	GetSignedURL(ctx context.Context, bucket, key string, expiresIn int64) (string, error)

	// PublicURL 对象的公开访问 URL（不带签名）
	PublicURL(bucket, key string) string
}
