package update

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xxinine/vi-tools/internal/model"
	"github.com/xxinine/vi-tools/internal/sheet"
	"github.com/xxinine/vi-tools/internal/trace"
)

// RefreshPrices 价格驱动：读代码列，两次快照拉取覆盖全部代码，逐行暂存写入，最后统一落盘。
// 任一市场快照为空视为行情源故障：不写入任何单元格、不保存，返回 ProviderFailure。
// 单只股票缺行情或数据非法只跳过该行，整体仍为 Success。
func (d *Driver) RefreshPrices(ctx context.Context) Outcome {
	trace.Log(ctx, "price: 开始更新股价 file=%s sheet=%s", d.cfg.File, d.cfg.Sheet)

	book, err := sheet.Open(d.cfg.File, d.cfg.Sheet)
	if err != nil {
		trace.Error(ctx, "price: %v", err)
		return SchemaError
	}
	defer book.Close()

	headers, err := book.Headers()
	if err != nil {
		trace.Error(ctx, "price: %v", err)
		return SchemaError
	}
	cols, err := sheet.Resolve(headers, sheet.PriceRequired)
	if err != nil {
		trace.Error(ctx, "price: %v", err)
		return SchemaError
	}
	tickers, err := book.Tickers(cols.Code)
	if err != nil {
		trace.Error(ctx, "price: %v", err)
		return SchemaError
	}

	trace.Log(ctx, "price: fetching A-share snapshot...")
	aSnap := d.source.MarketSnapshot(ctx, model.MarketA)
	trace.Log(ctx, "price: fetching HK-share snapshot...")
	hkSnap := d.source.MarketSnapshot(ctx, model.MarketHK)
	if len(aSnap) == 0 || len(hkSnap) == 0 {
		trace.Error(ctx, "price: 快照拉取失败 (A=%d HK=%d)，本次不修改表格", len(aSnap), len(hkSnap))
		return ProviderFailure
	}

	now := time.Now().Format(timeLayout)
	for _, tk := range tickers {
		switch model.Classify(tk.Code) {
		case model.MarketHK:
			q, ok := hkSnap[tk.Code]
			if !ok {
				trace.Warn(ctx, "%s is not found", tk.Code)
				continue
			}
			if !validPrice(q.Price) {
				trace.Warn(ctx, "%s 行情价格非法 price=%v，跳过", tk.Code, q.Price)
				continue
			}
			book.Stage(tk.Row, cols.PriceHKD, q.Price)
			book.Stage(tk.Row, cols.ChangePct, q.ChangePct/pctDivisor)
			book.Stage(tk.Row, cols.UpdateTime, now)
			d.stageWatermark(book, cols, tk.Row, q.Price)
			fmt.Fprintf(os.Stdout, "%-8s %-2s %-12s %8.2f %7.2f%%\n",
				tk.Code, model.MarketHK, q.Name, q.Price, q.ChangePct)
		case model.MarketA:
			q, ok := aSnap[tk.Code]
			if !ok {
				trace.Warn(ctx, "%s is not found", tk.Code)
				continue
			}
			if !validPrice(q.Price) {
				trace.Warn(ctx, "%s 行情价格非法 price=%v，跳过", tk.Code, q.Price)
				continue
			}
			shares := d.shareCount(tk.Code, q.MarketCap, q.Price)
			book.Stage(tk.Row, cols.PriceCNY, q.Price)
			book.Stage(tk.Row, cols.ShareCount, shares)
			book.Stage(tk.Row, cols.ChangePct, q.ChangePct/pctDivisor)
			book.Stage(tk.Row, cols.UpdateTime, now)
			d.stageWatermark(book, cols, tk.Row, q.Price)
			fmt.Fprintf(os.Stdout, "%-8s %-2s %-12s %8.2f %7.2f%% 总股本:%.2f\n",
				tk.Code, model.MarketA, q.Name, q.Price, q.ChangePct, shares)
		default:
			// 非 5/6 位代码不属于任一市场，静默跳过
		}
	}

	book.Stage(markerRow(tickers), markerCol, now)
	if err := book.Commit(); err != nil {
		trace.Error(ctx, "price: %v", err)
		return SchemaError
	}
	trace.Log(ctx, "price: 股价更新完成，写入 %s", d.cfg.File)
	return Success
}
