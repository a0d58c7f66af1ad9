// vi-tools 入口：刷新个人持仓 Excel 的现价、涨幅、总股本、前低与波动率。
// 支持单次运行（-p/-v/-a，缺省只更股价）与 cron 子命令的定时模式。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/xxinine/vi-tools/internal/api"
	"github.com/xxinine/vi-tools/internal/config"
	"github.com/xxinine/vi-tools/internal/mail"
	"github.com/xxinine/vi-tools/internal/quote"
	"github.com/xxinine/vi-tools/internal/trace"
	"github.com/xxinine/vi-tools/internal/update"
)

// 单次刷新的兜底超时：波动率路径逐只拉历史，耗时随持仓数线性增长
const runTimeout = 10 * time.Minute

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	var (
		cfgPath   string
		priceOnly bool
		volOnly   bool
		both      bool
		noOpen    bool
	)

	rootCmd := &cobra.Command{
		Use:           "vi-tools",
		Short:         "Refresh portfolio workbook with live HK/A-share data",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()
			ctx = trace.WithTraceID(ctx, trace.NewTraceID())
			// 驱动内的失败已记日志并恢复，历史入口无论成败都以 0 退出
			newCoordinator(cfg).Run(ctx, resolveIntent(priceOnly, volOnly, both))
			if !noOpen {
				openWorkbook(ctx, cfg.File)
			}
			return nil
		},
	}

	cronCmd := &cobra.Command{
		Use:   "cron",
		Short: "Run the selected refresh on the configured cron schedule",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			intent := resolveIntent(priceOnly, volOnly, both)
			co := newCoordinator(cfg)
			sched := cron.New(cron.WithSeconds())
			if _, err := sched.AddFunc(cfg.Cron, func() {
				ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
				defer cancel()
				ctx = trace.WithTraceID(ctx, trace.NewTraceID())
				start := time.Now()
				res := co.Run(ctx, intent)
				_ = mail.SendRunSummary(ctx, &cfg.SMTP, cfg.File, res, time.Since(start))
			}); err != nil {
				return fmt.Errorf("register cron %q: %w", cfg.Cron, err)
			}
			sched.Start()
			defer sched.Stop()
			log.Printf("cron 模式启动 spec=%q intent=%s file=%s", cfg.Cron, intent, cfg.File)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Println("收到退出信号，停止调度")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&priceOnly, "price", "p", false, "只更新股价")
	rootCmd.PersistentFlags().BoolVarP(&volOnly, "volatility", "v", false, "只更新波动率（用历史价回填价格列）")
	rootCmd.PersistentFlags().BoolVarP(&both, "all", "a", false, "更新股价与波动率，股价失败时由历史价兜底")
	rootCmd.Flags().BoolVar(&noOpen, "no-open", false, "运行后不打开工作簿")
	rootCmd.AddCommand(cronCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func newCoordinator(cfg *config.Config) *update.Coordinator {
	source := quote.NewSource(api.NewClient(cfg.Proxy))
	return update.NewCoordinator(cfg, source)
}

// resolveIntent 旗标优先级：-a > -p > -v，全缺省等同 -p。
func resolveIntent(priceOnly, volOnly, both bool) update.Intent {
	switch {
	case both:
		return update.IntentAll
	case priceOnly:
		return update.IntentPrice
	case volOnly:
		return update.IntentVolatility
	default:
		return update.IntentPrice
	}
}

// openWorkbook 运行结束后在桌面环境打开工作簿，属便利行为，失败只记日志。
func openWorkbook(ctx context.Context, path string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		trace.Log(ctx, "main: 打开 %s 失败 err=%v", path, err)
	}
}
