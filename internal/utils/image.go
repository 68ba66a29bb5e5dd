package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Devifyo/lumina/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotImage 上传的文件不是图片
	ErrNotImage = errors.New("file is not an image")
	// ErrTooLarge 上传的文件超过大小限制
	ErrTooLarge = errors.New("image exceeds upload size limit")
)

// LoadImageBytes 校验声明的 MIME 类型并转为 data URI。
// declaredMIME 为空时根据内容嗅探
func LoadImageBytes(data []byte, declaredMIME string, maxBytes int64) (domain.ImageAsset, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return domain.ImageAsset{}, fmt.Errorf("%w: %d bytes > %d bytes", ErrTooLarge, len(data), maxBytes)
	}
	if len(data) == 0 {
		return domain.ImageAsset{}, fmt.Errorf("%w: empty file", ErrNotImage)
	}

	mimeType := normalizeMIME(declaredMIME)
	if mimeType == "" {
		mimeType = normalizeMIME(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.ImageAsset{}, fmt.Errorf("%w: declared type %q", ErrNotImage, mimeType)
	}
	return domain.NewImageAsset(data, mimeType), nil
}

// LoadImageFile 读取本地图片文件，类型由扩展名决定，未知扩展名时嗅探内容
func LoadImageFile(path string, maxBytes int64) (domain.ImageAsset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return domain.ImageAsset{}, fmt.Errorf("%w: %d bytes > %d bytes", ErrTooLarge, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImageAsset{}, fmt.Errorf("failed to read image file: %w", err)
	}
	return LoadImageBytes(data, mimeFromExtension(filepath.Ext(path)), maxBytes)
}

// LoadImageURL 下载远程图片
func LoadImageURL(ctx context.Context, url string, maxBytes int64) (domain.ImageAsset, error) {
	data, mimeType, err := DownloadImageFromURL(ctx, url, maxBytes)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	return LoadImageBytes(data, mimeType, maxBytes)
}

// LoadImage 根据输入自动选择：data URI、http(s) URL 或本地路径
func LoadImage(ctx context.Context, input string, maxBytes int64) (domain.ImageAsset, error) {
	input = strings.TrimSpace(input)
	switch {
	case strings.HasPrefix(input, "data:"):
		mimeType, _, err := domain.ParseDataURI(input)
		if err != nil {
			return domain.ImageAsset{}, err
		}
		asset := domain.ImageAsset{DataURI: input, MIMEType: mimeType}
		data, err := asset.Bytes()
		if err != nil {
			return domain.ImageAsset{}, err
		}
		return LoadImageBytes(data, mimeType, maxBytes)
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		return LoadImageURL(ctx, input, maxBytes)
	default:
		return LoadImageFile(input, maxBytes)
	}
}

// DownloadImageFromURL 从 URL 下载图片，返回图片数据和 MIME 类型
func DownloadImageFromURL(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status code %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		// 多读一个字节用于判断是否超限
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	imageData, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && int64(len(imageData)) > maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = InferMimeTypeFromURL(url)
	}

	return imageData, mimeType, nil
}

// InferMimeTypeFromURL 从 URL 推断 MIME 类型（不区分大小写），未知时返回空
func InferMimeTypeFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return mimeFromExtension(filepath.Ext(url))
}

func mimeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".heic":
		return "image/heic"
	}
	return ""
}

// normalizeMIME 去掉参数部分并转小写，例如 "image/PNG; charset=binary" -> "image/png"
func normalizeMIME(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// GenerateImagePath 生成图片路径：images/yyyy-MM-dd/
func GenerateImagePath(now time.Time) string {
	return fmt.Sprintf("images/%s/", now.Format("2006-01-02"))
}

// GenerateImageFileName 生成图片文件名：{uuid}_{timestamp}.ext
func GenerateImageFileName(mimeType string, now time.Time) string {
	return fmt.Sprintf("%s_%d%s", uuid.NewString(), now.Unix(), GetExtensionFromMimeType(mimeType))
}

// GetExtensionFromMimeType 根据 MIME 类型获取文件扩展名（不区分大小写）
func GetExtensionFromMimeType(mimeType string) string {
	switch normalizeMIME(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".png"
	}
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
