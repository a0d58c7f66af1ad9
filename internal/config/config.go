// Package config 从 YAML 文件加载配置并被环境变量覆盖，缺省值兜底。
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// 配置路径与环境变量名
const (
	DefaultPath = "config.yaml"

	envFile        = "VITOOLS_FILE"
	envSheet       = "VITOOLS_SHEET"
	envHistoryDays = "VITOOLS_HISTORY_DAYS"
	envCron        = "VITOOLS_CRON"
	envProxy       = "HTTPS_PROXY"
	envSMTPServer  = "SMTP_SERVER"
	envSMTPPort    = "SMTP_PORT"
	envSMTPUser    = "SMTP_USER"
	envSMTPPass    = "SMTP_PASSWORD"
	envSMTPFrom    = "SMTP_FROM"
	envSMTPTo      = "SMTP_TO"
)

// 缺省值：工作簿、表名、历史窗口与调度
const (
	defaultFile        = "ValueInvestment_auto.xlsx"
	defaultSheet       = "预期收益率管理"
	defaultHistoryDays = 30
	// 交易日 9:30-15:30 每小时的第 30 分钟各跑一次（含秒字段）
	defaultCron = "0 30 9-15 * * 1-5"
)

// 600025 总股本特例：接口按市值反推会偏差，固定为已核对值（亿股）。
const (
	overrideCode600025  = "600025"
	overrideShare600025 = 188.3
)

// SMTP 调度模式下可选的运行摘要邮件配置。
type SMTP struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

func (s *SMTP) Enabled() bool {
	return s != nil && s.Server != "" && s.From != "" && s.To != ""
}

// Config 全部运行配置。ShareOverrides 为代码 -> 总股本(亿股) 的硬编码修正表。
type Config struct {
	File           string             `yaml:"file"`
	Sheet          string             `yaml:"sheet"`
	HistoryDays    int                `yaml:"history_days"`
	ShareOverrides map[string]float64 `yaml:"share_overrides"`
	Cron           string             `yaml:"cron"`
	Proxy          string             `yaml:"proxy"`
	SMTP           SMTP               `yaml:"smtp"`
}

// Load 读取 path 指定的 YAML（文件不存在不报错），再套环境变量与缺省值。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv(envFile); v != "" {
		cfg.File = v
	}
	if v := os.Getenv(envSheet); v != "" {
		cfg.Sheet = v
	}
	if v := os.Getenv(envHistoryDays); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryDays = n
		}
	}
	if v := os.Getenv(envCron); v != "" {
		cfg.Cron = v
	}
	if v := os.Getenv(envProxy); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv(envSMTPServer); v != "" {
		cfg.SMTP.Server = v
	}
	if v := os.Getenv(envSMTPPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = p
		}
	}
	if v := os.Getenv(envSMTPUser); v != "" {
		cfg.SMTP.User = v
	}
	if v := os.Getenv(envSMTPPass); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv(envSMTPFrom); v != "" {
		cfg.SMTP.From = v
	}
	if v := os.Getenv(envSMTPTo); v != "" {
		cfg.SMTP.To = v
	}

	if cfg.File == "" {
		cfg.File = defaultFile
	}
	if cfg.Sheet == "" {
		cfg.Sheet = defaultSheet
	}
	if cfg.HistoryDays == 0 {
		cfg.HistoryDays = defaultHistoryDays
	}
	if cfg.Cron == "" {
		cfg.Cron = defaultCron
	}
	if cfg.ShareOverrides == nil {
		cfg.ShareOverrides = map[string]float64{}
	}
	if _, ok := cfg.ShareOverrides[overrideCode600025]; !ok {
		cfg.ShareOverrides[overrideCode600025] = overrideShare600025
	}
	if cfg.SMTP.From == "" && cfg.SMTP.User != "" {
		cfg.SMTP.From = cfg.SMTP.User
	}

	return cfg, nil
}

// Validate 校验必填项。
func (c *Config) Validate() error {
	if c.File == "" {
		return fmt.Errorf("file is required")
	}
	if c.Sheet == "" {
		return fmt.Errorf("sheet is required")
	}
	if c.HistoryDays <= 0 {
		return fmt.Errorf("history_days must be positive")
	}
	return nil
}
