package oss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/utils"
)

// ErrEmptyAsset 没有可导出的图片
var ErrEmptyAsset = errors.New("nothing to export")

// ExporterConfig 导出配置
type ExporterConfig struct {
	Bucket string
	// ExpiresIn 签名 URL 有效期（秒）
	ExpiresIn int64
	// PublicURL 为 true 时返回公开 URL
	PublicURL bool
}

// Exporter 把编辑结果上传到对象存储并返回访问地址
type Exporter struct {
	client OSSIface
	cfg    ExporterConfig
	now    func() time.Time
}

// NewExporter 创建导出器
func NewExporter(client OSSIface, cfg ExporterConfig) *Exporter {
	if cfg.ExpiresIn <= 0 {
		cfg.ExpiresIn = 3600
	}
	return &Exporter{client: client, cfg: cfg, now: time.Now}
}

// ExportAsset 上传图片，返回 key 和 URL
func (e *Exporter) ExportAsset(ctx context.Context, asset domain.ImageAsset) (string, string, error) {
	if asset.IsZero() {
		return "", "", ErrEmptyAsset
	}
	data, err := asset.Bytes()
	if err != nil {
		return "", "", err
	}

	now := e.now()
	key := utils.GenerateImagePath(now) + utils.GenerateImageFileName(asset.MIMEType, now)
	if _, err := e.client.UploadFile(ctx, e.cfg.Bucket, key, bytes.NewReader(data), asset.MIMEType); err != nil {
		return "", "", err
	}

	if e.cfg.PublicURL {
		return key, e.client.PublicURL(e.cfg.Bucket, key), nil
	}
	url, err := e.client.GetSignedURL(ctx, e.cfg.Bucket, key, e.cfg.ExpiresIn)
	if err != nil {
		return "", "", fmt.Errorf("uploaded %s but failed to sign URL: %w", key, err)
	}

	common.WithFields(map[string]interface{}{
		"bucket": e.cfg.Bucket,
		"key":    key,
		"size":   len(data),
	}).Info("Exported image")
	return key, url, nil
}
