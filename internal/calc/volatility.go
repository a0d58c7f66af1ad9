// Package calc 提供历史 K 线波动率统计与前低水位线维护，均为纯函数。
package calc

import (
	"errors"

	"github.com/xxinine/vi-tools/internal/model"
)

// ErrNoBars 空历史序列无法计算波动率。
var ErrNoBars = errors.New("calc: no history bars")

// Volatility 对一段日 K 计算三个均值：向上波动、向下波动、综合波动。
// 单日定义：前收盘 = 收盘 - 涨跌额；
//
//	向上 = (最高 - 前收盘) / 前收盘
//	向下 = (最低 - 前收盘) / 前收盘
//	综合 = max(向上, -向下)
//
// 前收盘为 0 或负数时不做保护，按 IEEE-754 语义传播 NaN/Inf（与既有数据口径一致）。
func Volatility(bars []model.HistoryBar) (model.VolatilityStats, error) {
	if len(bars) == 0 {
		return model.VolatilityStats{}, ErrNoBars
	}
	var sumUp, sumDown, sumMax float64
	for _, b := range bars {
		prev := b.PrevClose()
		up := (b.High - prev) / prev
		down := (b.Low - prev) / prev
		combined := up
		if -down > combined {
			combined = -down
		}
		sumUp += up
		sumDown += down
		sumMax += combined
	}
	n := float64(len(bars))
	return model.VolatilityStats{
		MeanUp:   sumUp / n,
		MeanDown: sumDown / n,
		Mean:     sumMax / n,
	}, nil
}
