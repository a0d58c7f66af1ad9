package update

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/xxinine/vi-tools/internal/config"
	"github.com/xxinine/vi-tools/internal/model"
	"github.com/xxinine/vi-tools/internal/sheet"
)

const testSheet = "预期收益率管理"

// fakeSource 以内存数据充当行情源，契约与真实适配层一致：空即失败。
type fakeSource struct {
	a    model.Snapshot
	hk   model.Snapshot
	hist map[string][]model.HistoryBar
}

func (f *fakeSource) MarketSnapshot(_ context.Context, m model.Market) model.Snapshot {
	switch m {
	case model.MarketA:
		return f.a
	case model.MarketHK:
		return f.hk
	default:
		return model.Snapshot{}
	}
}

func (f *fakeSource) History(_ context.Context, code string, _ int) []model.HistoryBar {
	return f.hist[code]
}

var priceHeaders = []string{
	sheet.ColCode, sheet.ColPriceCNY, sheet.ColPriceHKD, sheet.ColChangePct,
	sheet.ColShareCount, sheet.ColUpdateTime, sheet.ColPrevLow,
}

var allHeaders = append(append([]string{}, priceHeaders...),
	sheet.ColVolH, sheet.ColVolL, sheet.ColVol)

func newWorkbook(t *testing.T, headers, codes []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", testSheet))
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(testSheet, cell, h))
	}
	for i, code := range codes {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(testSheet, cell, code))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func testConfig(path string) *config.Config {
	return &config.Config{
		File:           path,
		Sheet:          testSheet,
		HistoryDays:    30,
		ShareOverrides: map[string]float64{"600025": 188.3},
	}
}

func readCell(t *testing.T, path, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(testSheet, cell)
	require.NoError(t, err)
	return v
}

func readCellFloat(t *testing.T, path, cell string) float64 {
	t.Helper()
	raw := readCell(t, path, cell)
	require.NotEmpty(t, raw, "cell %s is empty", cell)
	v, err := strconv.ParseFloat(raw, 64)
	require.NoError(t, err, "cell %s = %q", cell, raw)
	return v
}

func snapshots() (model.Snapshot, model.Snapshot) {
	a := model.Snapshot{
		"600025": {Code: "600025", Name: "华能水电", Price: 5.0, ChangePct: 2.5, MarketCap: 1e10},
		"000001": {Code: "000001", Name: "平安银行", Price: 10.5, ChangePct: -1.2, MarketCap: 2.03e11},
	}
	hk := model.Snapshot{
		"00001": {Code: "00001", Name: "长和", Price: 38.0, ChangePct: -0.5},
	}
	return a, hk
}

func TestRefreshPricesRoutesByCodeLength(t *testing.T) {
	a, hk := snapshots()
	path := newWorkbook(t, priceHeaders, []string{"00001", "600025", "999"})
	d := NewDriver(testConfig(path), &fakeSource{a: a, hk: hk})

	out := d.RefreshPrices(context.Background())
	require.Equal(t, Success, out)

	// 00001 (5 位) 走港股快照：现价(HKD) C2、涨幅 D2=-0.5/100、前低 G2
	assert.InDelta(t, 38.0, readCellFloat(t, path, "C2"), 1e-9)
	assert.InDelta(t, -0.005, readCellFloat(t, path, "D2"), 1e-9)
	assert.InDelta(t, 38.0, readCellFloat(t, path, "G2"), 1e-9)
	assert.NotEmpty(t, readCell(t, path, "F2"))
	// 港股不写 CNY 价与总股本
	assert.Empty(t, readCell(t, path, "B2"))
	assert.Empty(t, readCell(t, path, "E2"))

	// 600025 (6 位) 走 A 股快照：现价(CNY) B3、总股本取硬编码修正 188.3（按市值反推应为 20）
	assert.InDelta(t, 5.0, readCellFloat(t, path, "B3"), 1e-9)
	assert.InDelta(t, 188.3, readCellFloat(t, path, "E3"), 1e-9)
	assert.InDelta(t, 0.025, readCellFloat(t, path, "D3"), 1e-9)
	assert.Empty(t, readCell(t, path, "C3"))

	// 999 长度非法：整行不动
	for _, cell := range []string{"B4", "C4", "D4", "E4", "F4", "G4"} {
		assert.Empty(t, readCell(t, path, cell))
	}

	// 完成标记在最后一只代码行（第 4 行）下方第 4 行的首列
	assert.NotEmpty(t, readCell(t, path, "A8"))
}

func TestRefreshPricesShareCountDerived(t *testing.T) {
	a, hk := snapshots()
	path := newWorkbook(t, priceHeaders, []string{"000001"})
	d := NewDriver(testConfig(path), &fakeSource{a: a, hk: hk})

	require.Equal(t, Success, d.RefreshPrices(context.Background()))
	// 无修正项时 总股本 = 总市值/现价 × 1e-8
	assert.InDelta(t, 2.03e11/10.5*1e-8, readCellFloat(t, path, "E2"), 1e-6)
}

func TestRefreshPricesSkipsAbsentAndInvalid(t *testing.T) {
	a, hk := snapshots()
	hk["00002"] = model.Quote{Code: "00002", Name: "中电控股", Price: 0}
	path := newWorkbook(t, priceHeaders, []string{"00088", "00002"})
	d := NewDriver(testConfig(path), &fakeSource{a: a, hk: hk})

	require.Equal(t, Success, d.RefreshPrices(context.Background()))
	// 00088 不在快照、00002 价格非法：两行均原样
	for _, cell := range []string{"B2", "C2", "D2", "E2", "F2", "G2",
		"B3", "C3", "D3", "E3", "F3", "G3"} {
		assert.Empty(t, readCell(t, path, cell))
	}
}

func TestRefreshPricesProviderFailure(t *testing.T) {
	a, _ := snapshots()
	path := newWorkbook(t, priceHeaders, []string{"00001", "600025"})
	// 港股快照为空 -> 整次运行视为行情源故障
	d := NewDriver(testConfig(path), &fakeSource{a: a, hk: model.Snapshot{}})

	out := d.RefreshPrices(context.Background())
	require.Equal(t, ProviderFailure, out)
	// 零写入零保存：包括完成标记
	for _, cell := range []string{"B2", "C2", "D2", "F2", "B3", "D3", "A8"} {
		assert.Empty(t, readCell(t, path, cell))
	}
}

func TestRefreshPricesMissingColumn(t *testing.T) {
	headers := []string{sheet.ColCode, sheet.ColPriceCNY, sheet.ColPriceHKD,
		sheet.ColChangePct, sheet.ColUpdateTime} // 缺 总股本
	a, hk := snapshots()
	path := newWorkbook(t, headers, []string{"00001"})
	d := NewDriver(testConfig(path), &fakeSource{a: a, hk: hk})

	require.Equal(t, SchemaError, d.RefreshPrices(context.Background()))
	for _, cell := range []string{"B2", "C2", "D2", "E2"} {
		assert.Empty(t, readCell(t, path, cell))
	}
}

// 三次运行价格序列 50 -> 45 -> 48，前低应停在 45。
func TestPreviousLowAcrossRuns(t *testing.T) {
	path := newWorkbook(t, priceHeaders, []string{"00001"})
	cfg := testConfig(path)
	_, hk := snapshots()
	src := &fakeSource{a: model.Snapshot{"600000": {Code: "600000", Price: 1}}, hk: hk}
	d := NewDriver(cfg, src)

	wantLow := []float64{50, 45, 45}
	for i, price := range []float64{50, 45, 48} {
		src.hk = model.Snapshot{"00001": {Code: "00001", Name: "长和", Price: price, ChangePct: 0}}
		require.Equal(t, Success, d.RefreshPrices(context.Background()))
		assert.InDelta(t, wantLow[i], readCellFloat(t, path, "G2"), 1e-9, "run %d", i+1)
	}
}

func historyFixture() []model.HistoryBar {
	return []model.HistoryBar{
		{Date: "2024-01-02", Close: 100, Change: 2, High: 103, Low: 97},
		{Date: "2024-01-03", Close: 100, Change: 2, High: 103, Low: 97},
	}
}

func TestRefreshVolatilityWritesStats(t *testing.T) {
	headers := []string{sheet.ColCode, sheet.ColVolH, sheet.ColVolL, sheet.ColVol}
	path := newWorkbook(t, headers, []string{"600025"})
	src := &fakeSource{hist: map[string][]model.HistoryBar{"600025": historyFixture()}}
	d := NewDriver(testConfig(path), src)

	require.Equal(t, Success, d.RefreshVolatility(context.Background(), false))
	assert.InDelta(t, 5.0/98.0, readCellFloat(t, path, "B2"), 1e-9)
	assert.InDelta(t, -1.0/98.0, readCellFloat(t, path, "C2"), 1e-9)
	assert.InDelta(t, 5.0/98.0, readCellFloat(t, path, "D2"), 1e-9)
}

func TestRefreshVolatilityEmptyHistorySkips(t *testing.T) {
	headers := []string{sheet.ColCode, sheet.ColVolH, sheet.ColVolL, sheet.ColVol}
	path := newWorkbook(t, headers, []string{"600025"})
	d := NewDriver(testConfig(path), &fakeSource{hist: map[string][]model.HistoryBar{}})

	require.Equal(t, Success, d.RefreshVolatility(context.Background(), false))
	for _, cell := range []string{"B2", "C2", "D2"} {
		assert.Empty(t, readCell(t, path, cell))
	}
}

func TestRefreshVolatilityBackfillsPrices(t *testing.T) {
	path := newWorkbook(t, allHeaders, []string{"600025"})
	src := &fakeSource{hist: map[string][]model.HistoryBar{"600025": {
		{Date: "2024-01-02", Close: 5.4, Change: 0.2, High: 5.5, Low: 5.1},
		{Date: "2024-01-03", Close: 5.5, Change: 0.1, High: 5.6, Low: 5.3},
	}}}
	d := NewDriver(testConfig(path), src)

	require.Equal(t, Success, d.RefreshVolatility(context.Background(), true))
	// 最近一根：收盘 5.5，前收盘 5.4，涨跌比 0.1/5.4
	assert.InDelta(t, 5.5, readCellFloat(t, path, "B2"), 1e-9)
	assert.InDelta(t, 0.1/5.4, readCellFloat(t, path, "D2"), 1e-9)
	assert.InDelta(t, 5.5, readCellFloat(t, path, "G2"), 1e-9)
	assert.NotEmpty(t, readCell(t, path, "F2"))
	// 港股价列不写
	assert.Empty(t, readCell(t, path, "C2"))
}

// 价格相关列全部缺失时回填静默降级，仅写波动率。
func TestRefreshVolatilityBackfillWithoutOptionalColumns(t *testing.T) {
	headers := []string{sheet.ColCode, sheet.ColVolH, sheet.ColVolL, sheet.ColVol}
	path := newWorkbook(t, headers, []string{"00001"})
	src := &fakeSource{hist: map[string][]model.HistoryBar{"00001": historyFixture()}}
	d := NewDriver(testConfig(path), src)

	require.Equal(t, Success, d.RefreshVolatility(context.Background(), true))
	assert.InDelta(t, 5.0/98.0, readCellFloat(t, path, "B2"), 1e-9)
}

func TestCoordinatorFallback(t *testing.T) {
	path := newWorkbook(t, allHeaders, []string{"600025"})
	// 快照全空 -> 价格驱动失败 -> 波动率驱动带价格回填
	src := &fakeSource{hist: map[string][]model.HistoryBar{"600025": historyFixture()}}
	co := NewCoordinator(testConfig(path), src)

	res := co.Run(context.Background(), IntentAll)
	require.True(t, res.PriceRan)
	require.Equal(t, ProviderFailure, res.PriceOutcome)
	require.True(t, res.VolatilityRan)
	require.Equal(t, Success, res.VolatilityOutcome)
	// 历史收盘 100 被回填进现价(CNY)
	assert.InDelta(t, 100.0, readCellFloat(t, path, "B2"), 1e-9)
}

func TestCoordinatorNoFallbackWhenPricesSucceed(t *testing.T) {
	path := newWorkbook(t, allHeaders, []string{"600025"})
	a, hk := snapshots()
	src := &fakeSource{a: a, hk: hk,
		hist: map[string][]model.HistoryBar{"600025": historyFixture()}}
	co := NewCoordinator(testConfig(path), src)

	res := co.Run(context.Background(), IntentAll)
	require.Equal(t, Success, res.PriceOutcome)
	require.Equal(t, Success, res.VolatilityOutcome)
	// 价格来自快照 (5.0) 而非历史收盘 (100)
	assert.InDelta(t, 5.0, readCellFloat(t, path, "B2"), 1e-9)
	// 波动率仍然写入
	assert.InDelta(t, 5.0/98.0, readCellFloat(t, path, "H2"), 1e-9)
}

func TestCoordinatorVolatilityOnlyAlwaysBackfills(t *testing.T) {
	path := newWorkbook(t, allHeaders, []string{"600025"})
	src := &fakeSource{hist: map[string][]model.HistoryBar{"600025": historyFixture()}}
	co := NewCoordinator(testConfig(path), src)

	res := co.Run(context.Background(), IntentVolatility)
	require.False(t, res.PriceRan)
	require.Equal(t, Success, res.VolatilityOutcome)
	assert.InDelta(t, 100.0, readCellFloat(t, path, "B2"), 1e-9)
}
