package update

import (
	"context"

	"github.com/xxinine/vi-tools/internal/config"
	"github.com/xxinine/vi-tools/internal/quote"
	"github.com/xxinine/vi-tools/internal/trace"
)

// Intent 命令意图：只更价格、只更波动率、或两者皆更（带兜底语义）。
type Intent int

const (
	IntentPrice Intent = iota
	IntentVolatility
	IntentAll
)

func (i Intent) String() string {
	switch i {
	case IntentPrice:
		return "price"
	case IntentVolatility:
		return "volatility"
	case IntentAll:
		return "all"
	default:
		return "unknown"
	}
}

// RunResult 一次协调运行的结果，供日志与摘要邮件使用。
type RunResult struct {
	Intent            Intent
	PriceRan          bool
	PriceOutcome      Outcome
	VolatilityRan     bool
	VolatilityOutcome Outcome
}

// Coordinator 按意图调度两个驱动。
type Coordinator struct {
	driver *Driver
}

func NewCoordinator(cfg *config.Config, source quote.Provider) *Coordinator {
	return &Coordinator{driver: NewDriver(cfg, source)}
}

// Run 执行一次刷新：
//   - IntentAll：先跑价格驱动；其失败（含快照为空）时波动率驱动以历史价兜底回填；
//   - IntentVolatility：波动率驱动无条件回填价格；
//   - IntentPrice（含缺省）：只跑价格驱动。
//
// 驱动内部失败均已记日志且不中断进程，历史入口无论成败都以 0 退出。
func (c *Coordinator) Run(ctx context.Context, intent Intent) RunResult {
	res := RunResult{Intent: intent}
	switch intent {
	case IntentAll:
		res.PriceRan = true
		res.PriceOutcome = c.driver.RefreshPrices(ctx)
		res.VolatilityRan = true
		res.VolatilityOutcome = c.driver.RefreshVolatility(ctx, res.PriceOutcome != Success)
	case IntentVolatility:
		res.VolatilityRan = true
		res.VolatilityOutcome = c.driver.RefreshVolatility(ctx, true)
	default:
		res.PriceRan = true
		res.PriceOutcome = c.driver.RefreshPrices(ctx)
	}
	trace.Log(ctx, "run: intent=%s %s", intent, res.Summary())
	return res
}

// Summary 拼一行人读摘要。
func (r RunResult) Summary() string {
	s := ""
	if r.PriceRan {
		s += "price=" + r.PriceOutcome.String()
	}
	if r.VolatilityRan {
		if s != "" {
			s += " "
		}
		s += "volatility=" + r.VolatilityOutcome.String()
	}
	if s == "" {
		s = "nothing ran"
	}
	return s
}
