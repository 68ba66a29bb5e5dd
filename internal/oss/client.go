package oss

import (
	"github.com/Devifyo/lumina/common"
)

// NewOSSClientFromConfig 从配置创建 OSS 客户端
func NewOSSClientFromConfig(cfg *common.Config) (OSSIface, error) {
	return NewS3Client(S3Config{
		Endpoint:  cfg.OSSEndpoint,
		Region:    cfg.OSSRegion,
		AccessKey: cfg.OSSAccessKey,
		SecretKey: cfg.OSSSecretKey,
	})
}

// NewExporterFromConfig 未配置对象存储时返回 nil
func NewExporterFromConfig(cfg *common.Config) (*Exporter, error) {
	if !cfg.OSSEnabled() {
		return nil, nil
	}
	client, err := NewOSSClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewExporter(client, ExporterConfig{
		Bucket:    cfg.OSSBucket,
		ExpiresIn: int64(cfg.OSSURLExpireSeconds),
		PublicURL: cfg.OSSPublicURL,
	}), nil
}
