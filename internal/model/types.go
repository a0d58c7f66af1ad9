// Package model 定义市场分类、行情快照、历史 K 线与波动率统计等数据结构。
package model

// Market 按代码长度区分的市场：5 位为港股，6 位为 A 股，其余未知。
type Market int

const (
	MarketUnknown Market = iota
	MarketA
	MarketHK
)

// 代码长度即市场判别依据
const (
	hkCodeLen = 5
	aCodeLen  = 6
)

// Classify 按代码长度判定市场，仅判定一次，后续分支统一用返回值。
func Classify(code string) Market {
	switch len(code) {
	case hkCodeLen:
		return MarketHK
	case aCodeLen:
		return MarketA
	default:
		return MarketUnknown
	}
}

// String 返回表格打印用的市场标记：A / H / ?
func (m Market) String() string {
	switch m {
	case MarketA:
		return "A"
	case MarketHK:
		return "H"
	default:
		return "?"
	}
}

// Quote 快照单条：代码、名称、最新价、涨跌幅(%)、总市值(元，仅 A 股)。
type Quote struct {
	Code      string
	Name      string
	Price     float64
	ChangePct float64
	MarketCap float64
}

// Snapshot 一个市场的全量快照：代码 -> 行情，单次驱动内只读共享。
type Snapshot map[string]Quote

// HistoryBar 单日历史 K：收盘、涨跌额、最高、最低。Change 为当日涨跌额(元)。
type HistoryBar struct {
	Date   string
	Close  float64
	Change float64
	High   float64
	Low    float64
}

// PrevClose 前收盘 = 收盘 - 涨跌额。
func (b HistoryBar) PrevClose() float64 {
	return b.Close - b.Change
}

// VolatilityStats 波动率统计：向上、向下与综合日内波动比的均值。
type VolatilityStats struct {
	MeanUp   float64
	MeanDown float64
	Mean     float64
}
