// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// APIConfig HTTP API 配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	RateLimit      bool    `mapstructure:"rate_limit"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// SchedulerConfig 任务队列调度配置
type SchedulerConfig struct {
	MaxConcurrentTasks int    `mapstructure:"max_concurrent_tasks"`
	RetryDelay         string `mapstructure:"retry_delay"`     // 如 "1s"
	DefaultTimeout     string `mapstructure:"default_timeout"` // 如 "30s"
	MaxRetries         int    `mapstructure:"max_retries"`
	PriorityMode       string `mapstructure:"priority_mode"` // weighted | strict
	PollInterval       string `mapstructure:"poll_interval"`
	WaitScale          string `mapstructure:"wait_scale"` // weighted 模式下等待时长折算 1 分所需时间
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"` // hash | openai
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// CacheConfig 向量化结果缓存；type 为空时不启用
type CacheConfig struct {
	Type       string `mapstructure:"type"` // memory | redis
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTL        string `mapstructure:"ttl"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// PersistenceConfig 持久化后端配置（Load/Save by key）
type PersistenceConfig struct {
	Type      string `mapstructure:"type"` // memory | file | sqlite | postgres | redis
	Path      string `mapstructure:"path"` // file 目录或 sqlite 文件
	DSN       string `mapstructure:"dsn"`  // postgres 连接串
	Addr      string `mapstructure:"addr"` // redis 地址
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// RetentionConfig 过期数据清理配置
type RetentionConfig struct {
	Enable             bool   `mapstructure:"enable"`
	TaskRetention      string `mapstructure:"task_retention"`      // 如 "168h"
	EmbeddingRetention string `mapstructure:"embedding_retention"` // 空表示不清理向量
	ScanInterval       string `mapstructure:"scan_interval"`
}

// SecretsConfig secret:// 引用的解析来源
type SecretsConfig struct {
	Provider  string      `mapstructure:"provider"`   // env | vault | k8s
	MountPath string      `mapstructure:"mount_path"` // k8s Secret 卷挂载目录
	Vault     VaultConfig `mapstructure:"vault"`
}

type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors.enable", true)
	v.SetDefault("api.cors.allow_origins", []string{"*"})
	v.SetDefault("api.middleware.rate_limit_rps", 50)
	v.SetDefault("api.middleware.rate_limit_burst", 100)
	v.SetDefault("scheduler.max_concurrent_tasks", 5)
	v.SetDefault("scheduler.retry_delay", "1s")
	v.SetDefault("scheduler.default_timeout", "30s")
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.priority_mode", "weighted")
	v.SetDefault("scheduler.poll_interval", "100ms")
	v.SetDefault("scheduler.wait_scale", "10s")
	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("storage.persistence.type", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.prometheus.enable", true)
	v.SetDefault("monitoring.tracing.service_name", "forge-platform")
	v.SetDefault("retention.task_retention", "168h")
	v.SetDefault("retention.scan_interval", "10m")
	v.SetDefault("secrets.provider", "env")
}

// LoadConfig 加载配置文件；configPath 为空时仅使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 将 "${VAR}" 形式的值替换为环境变量
func replaceEnvVars(config *Config) {
	config.Embedding.APIKey = expandEnv(config.Embedding.APIKey)
	config.Storage.Persistence.DSN = expandEnv(config.Storage.Persistence.DSN)
	config.Storage.Persistence.Password = expandEnv(config.Storage.Persistence.Password)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return s
}

// ParseDuration 解析时长字符串，空或非法时返回 def
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
