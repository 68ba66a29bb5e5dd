package common

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultPrimaryModel 主模型
	DefaultPrimaryModel = "gemini-2.5-flash-image"
	// DefaultFallbackModel 主模型失败后重试使用的备用模型
	DefaultFallbackModel = "gemini-2.0-flash-preview-image-generation"
	// AspectRatioSource 保持原图比例（不向后端传 ImageConfig）
	AspectRatioSource = "source"
)

var aspectRatioPattern = regexp.MustCompile(`^\d{1,2}:\d{1,2}$`)

// Config 应用配置结构
type Config struct {
	// GenAI 配置
	GenAIBaseURL  string
	GenAIAPIKey   string
	PrimaryModel  string
	FallbackModel string
	// 输出图片比例，例如 1:1、16:9；source 表示保持原图比例
	AspectRatio string
	// GenAI 请求超时时间（秒）
	GenAITimeoutSeconds int
	// 每分钟最多调用后端次数，0 表示不限制
	GenAIRateLimitPerMinute int

	// 会话闲置多久后被回收（分钟）
	SessionIdleMinutes int
	// 上传图片大小上限（MB）
	UploadMaxMB int

	// OSS 配置（导出结果用，可选）
	OSSEndpoint         string
	OSSRegion           string
	OSSAccessKey        string
	OSSSecretKey        string
	OSSBucket           string
	OSSURLExpireSeconds int
	// 导出时返回公开 URL 而不是带签名的临时 URL
	OSSPublicURL bool

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件和环境变量加载配置，并初始化日志
func LoadConfig() (*Config, error) {
	// stdout 是 MCP 的传输通道，提示信息只能写 stderr
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := ConfigFromEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := InitLogger(config.LogConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// ConfigFromEnv 只从当前环境变量读取配置，不做校验
func ConfigFromEnv() *Config {
	return &Config{
		GenAIBaseURL:            getEnv("GENAI_BASE_URL", ""),
		GenAIAPIKey:             getEnv("GENAI_API_KEY", ""),
		PrimaryModel:            getEnv("GENAI_PRIMARY_MODEL", DefaultPrimaryModel),
		FallbackModel:           getEnv("GENAI_FALLBACK_MODEL", DefaultFallbackModel),
		AspectRatio:             getEnv("GENAI_ASPECT_RATIO", "1:1"),
		GenAITimeoutSeconds:     getEnvInt("GENAI_TIMEOUT_SECONDS", 60),
		GenAIRateLimitPerMinute: getEnvInt("GENAI_RATE_LIMIT_PER_MINUTE", 0),
		SessionIdleMinutes:      getEnvInt("SESSION_IDLE_MINUTES", 120),
		UploadMaxMB:             getEnvInt("UPLOAD_MAX_MB", 20),
		// OSS 配置
		OSSEndpoint:         getEnv("OSS_ENDPOINT", ""),
		OSSRegion:           getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey:        getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey:        getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:           getEnv("OSS_BUCKET", ""),
		OSSURLExpireSeconds: getEnvInt("OSS_URL_EXPIRE_SECONDS", 3600),
		OSSPublicURL:        getEnvBool("OSS_PUBLIC_URL", false),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stderr"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

// Validate 校验必需的配置
func (c *Config) Validate() error {
	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required")
	}
	if c.PrimaryModel == "" {
		return fmt.Errorf("GENAI_PRIMARY_MODEL must not be empty")
	}
	if !strings.EqualFold(c.AspectRatio, AspectRatioSource) && !aspectRatioPattern.MatchString(c.AspectRatio) {
		return fmt.Errorf("invalid GENAI_ASPECT_RATIO %q: expected W:H or %q", c.AspectRatio, AspectRatioSource)
	}
	if c.GenAITimeoutSeconds <= 0 {
		return fmt.Errorf("GENAI_TIMEOUT_SECONDS must be positive, got %d", c.GenAITimeoutSeconds)
	}
	if c.GenAIRateLimitPerMinute < 0 {
		return fmt.Errorf("GENAI_RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.GenAIRateLimitPerMinute)
	}
	if c.UploadMaxMB <= 0 {
		return fmt.Errorf("UPLOAD_MAX_MB must be positive, got %d", c.UploadMaxMB)
	}
	return nil
}

// LogConfig 日志相关配置
func (c *Config) LogConfig() *LogConfig {
	return &LogConfig{
		Level:    c.LogLevel,
		Format:   c.LogFormat,
		Output:   c.LogOutput,
		FilePath: c.LogFile,
	}
}

// GenAITimeout 单次后端调用超时
func (c *Config) GenAITimeout() time.Duration {
	return time.Duration(c.GenAITimeoutSeconds) * time.Second
}

// SessionIdleTimeout 会话闲置回收时间
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// UploadMaxBytes 上传大小上限（字节）
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxMB) << 20
}

// PreserveAspectRatio 是否保持原图比例
func (c *Config) PreserveAspectRatio() bool {
	return strings.EqualFold(c.AspectRatio, AspectRatioSource)
}

// OSSEnabled 是否配置了导出用的对象存储
func (c *Config) OSSEnabled() bool {
	return c.OSSBucket != "" && c.OSSAccessKey != "" && c.OSSSecretKey != ""
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}
