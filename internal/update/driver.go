// Package update 实现两个表格刷新驱动与运行协调：
// 价格驱动按市场快照更新现价/涨幅/总股本/前低，波动率驱动按历史 K 线更新波动率并可兜底回填价格。
package update

import (
	"math"

	"github.com/xxinine/vi-tools/internal/calc"
	"github.com/xxinine/vi-tools/internal/config"
	"github.com/xxinine/vi-tools/internal/quote"
	"github.com/xxinine/vi-tools/internal/sheet"
)

// Outcome 单次驱动调用的结果类型，协调器据此决定兜底路径。
type Outcome int

const (
	Success Outcome = iota
	ProviderFailure
	SchemaError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ProviderFailure:
		return "provider failure"
	case SchemaError:
		return "schema error"
	default:
		return "unknown"
	}
}

// 时间戳格式与落盘位置
const (
	timeLayout = "2006-01-02 15:04:05"
	// 完成标记写在最后一只代码所在行下方第 markerRowGap 行的首列
	markerRowGap = 4
	markerCol    = 1
)

// 快照涨跌幅为百分数，入表前除以 100；总股本 = 总市值/现价 × 1e-8（亿股）
const (
	pctDivisor      = 100
	shareCountScale = 1e-8
)

// Driver 承载两个刷新驱动的共享依赖。
type Driver struct {
	cfg    *config.Config
	source quote.Provider
}

func NewDriver(cfg *config.Config, source quote.Provider) *Driver {
	return &Driver{cfg: cfg, source: source}
}

// validPrice 上游坏数据防护：非 NaN 且大于 0 才可入表。
func validPrice(p float64) bool {
	return !math.IsNaN(p) && p > 0
}

// stageWatermark 前低列存在时读当前值并暂存只降不升的新水位。
func (d *Driver) stageWatermark(book *sheet.Book, cols sheet.Columns, row int, price float64) {
	if cols.PrevLow == 0 {
		return
	}
	var current *float64
	if v, ok := book.CellFloat(row, cols.PrevLow); ok {
		current = &v
	}
	book.Stage(row, cols.PrevLow, calc.UpdatePreviousLow(current, price))
}

// shareCount 按市值反推总股本(亿股)，配置里的硬编码修正表优先。
func (d *Driver) shareCount(code string, marketCap, price float64) float64 {
	if v, ok := d.cfg.ShareOverrides[code]; ok {
		return v
	}
	return marketCap / price * shareCountScale
}

// markerRow 运行完成标记所在行；无代码时以标题行为基准。
func markerRow(tickers []sheet.TickerRow) int {
	last := 1
	if n := len(tickers); n > 0 {
		last = tickers[n-1].Row
	}
	return last + markerRowGap
}
