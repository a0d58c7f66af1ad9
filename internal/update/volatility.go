package update

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xxinine/vi-tools/internal/calc"
	"github.com/xxinine/vi-tools/internal/model"
	"github.com/xxinine/vi-tools/internal/sheet"
	"github.com/xxinine/vi-tools/internal/trace"
)

// RefreshVolatility 波动率驱动：逐只拉取约 HistoryDays 个自然日的历史 K 线，
// 计算三个波动率均值并写入；updatePrices 为真时再用最近一根 K 线回填价格相关列
// （仅当对应可选列存在）。空历史只跳过该行，最后统一落盘一次。
func (d *Driver) RefreshVolatility(ctx context.Context, updatePrices bool) Outcome {
	trace.Log(ctx, "volatility: 开始更新波动率 file=%s sheet=%s updatePrices=%v",
		d.cfg.File, d.cfg.Sheet, updatePrices)

	book, err := sheet.Open(d.cfg.File, d.cfg.Sheet)
	if err != nil {
		trace.Error(ctx, "volatility: %v", err)
		return SchemaError
	}
	defer book.Close()

	headers, err := book.Headers()
	if err != nil {
		trace.Error(ctx, "volatility: %v", err)
		return SchemaError
	}
	cols, err := sheet.Resolve(headers, sheet.VolatilityRequired)
	if err != nil {
		trace.Error(ctx, "volatility: %v", err)
		return SchemaError
	}
	tickers, err := book.Tickers(cols.Code)
	if err != nil {
		trace.Error(ctx, "volatility: %v", err)
		return SchemaError
	}

	now := time.Now().Format(timeLayout)
	for _, tk := range tickers {
		if model.Classify(tk.Code) == model.MarketUnknown {
			continue
		}
		bars := d.source.History(ctx, tk.Code, d.cfg.HistoryDays)
		if len(bars) == 0 {
			trace.Warn(ctx, "%s is not found", tk.Code)
			continue
		}
		stats, err := calc.Volatility(bars)
		if err != nil {
			trace.Warn(ctx, "%s 波动率计算失败 err=%v，跳过", tk.Code, err)
			continue
		}
		book.Stage(tk.Row, cols.VolH, stats.MeanUp)
		book.Stage(tk.Row, cols.VolL, stats.MeanDown)
		book.Stage(tk.Row, cols.Vol, stats.Mean)
		fmt.Fprintf(os.Stdout, "%-8s  volatility_h:%.4f  volatility_l:%.4f  volatility:%.4f\n",
			tk.Code, stats.MeanUp, stats.MeanDown, stats.Mean)

		if updatePrices {
			d.stagePriceFromHistory(ctx, book, cols, tk, bars[len(bars)-1], now)
		}
	}

	if err := book.Commit(); err != nil {
		trace.Error(ctx, "volatility: %v", err)
		return SchemaError
	}
	trace.Log(ctx, "volatility: 波动率更新完成，写入 %s", d.cfg.File)
	return Success
}

// stagePriceFromHistory 用最近一根日 K 的收盘与涨跌比替代实时行情回填：
// 市场对应价格列、涨幅列、前低与更新时间，逐列判断存在与否。
func (d *Driver) stagePriceFromHistory(ctx context.Context, book *sheet.Book, cols sheet.Columns, tk sheet.TickerRow, last model.HistoryBar, now string) {
	if !validPrice(last.Close) {
		trace.Warn(ctx, "%s 历史收盘非法 close=%v，不回填价格", tk.Code, last.Close)
		return
	}
	priceCol := 0
	switch model.Classify(tk.Code) {
	case model.MarketHK:
		priceCol = cols.PriceHKD
	case model.MarketA:
		priceCol = cols.PriceCNY
	default:
		return
	}
	if priceCol != 0 {
		book.Stage(tk.Row, priceCol, last.Close)
	}
	if cols.ChangePct != 0 {
		book.Stage(tk.Row, cols.ChangePct, last.Change/last.PrevClose())
	}
	d.stageWatermark(book, cols, tk.Row, last.Close)
	if cols.UpdateTime != 0 {
		book.Stage(tk.Row, cols.UpdateTime, now)
	}
}
