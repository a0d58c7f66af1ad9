package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ValueInvestment_auto.xlsx", cfg.File)
	assert.Equal(t, "预期收益率管理", cfg.Sheet)
	assert.Equal(t, 30, cfg.HistoryDays)
	assert.Equal(t, "0 30 9-15 * * 1-5", cfg.Cron)
	assert.Equal(t, 188.3, cfg.ShareOverrides["600025"])
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
file: 我的持仓.xlsx
sheet: 持仓
history_days: 60
share_overrides:
  "600000": 293.5
smtp:
  server: smtp.example.com
  port: 465
  user: bot@example.com
  to: me@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "我的持仓.xlsx", cfg.File)
	assert.Equal(t, "持仓", cfg.Sheet)
	assert.Equal(t, 60, cfg.HistoryDays)
	assert.Equal(t, 293.5, cfg.ShareOverrides["600000"])
	// 硬编码修正不会被自定义表覆盖掉
	assert.Equal(t, 188.3, cfg.ShareOverrides["600025"])
	// From 缺省回落到 User
	assert.Equal(t, "bot@example.com", cfg.SMTP.From)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("file: a.xlsx\nhistory_days: 10\n"), 0o644))

	t.Setenv("VITOOLS_FILE", "b.xlsx")
	t.Setenv("VITOOLS_SHEET", "观察")
	t.Setenv("VITOOLS_HISTORY_DAYS", "45")
	t.Setenv("VITOOLS_CRON", "0 0 10 * * 1-5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "b.xlsx", cfg.File)
	assert.Equal(t, "观察", cfg.Sheet)
	assert.Equal(t, 45, cfg.HistoryDays)
	assert.Equal(t, "0 0 10 * * 1-5", cfg.Cron)
}

func TestLoadBadHistoryDaysEnvIgnored(t *testing.T) {
	t.Setenv("VITOOLS_HISTORY_DAYS", "abc")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.HistoryDays)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("file: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{File: "a.xlsx", Sheet: "s", HistoryDays: 30}
	assert.NoError(t, cfg.Validate())

	assert.Error(t, (&Config{Sheet: "s", HistoryDays: 30}).Validate())
	assert.Error(t, (&Config{File: "a.xlsx", HistoryDays: 30}).Validate())
	assert.Error(t, (&Config{File: "a.xlsx", Sheet: "s"}).Validate())
}

func TestSMTPEnabled(t *testing.T) {
	var nilSMTP *SMTP
	assert.False(t, nilSMTP.Enabled())
	assert.False(t, (&SMTP{Server: "smtp.example.com"}).Enabled())
	assert.True(t, (&SMTP{Server: "smtp.example.com", From: "a@b.c", To: "d@e.f"}).Enabled())
}
