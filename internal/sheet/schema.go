package sheet

import "fmt"

// 表格列标题（与手工维护的工作簿保持一致）
const (
	ColCode       = "代码"
	ColPriceCNY   = "现价(CNY)"
	ColPriceHKD   = "现价(HKD)"
	ColChangePct  = "今日涨幅"
	ColShareCount = "总股本"
	ColUpdateTime = "更新时间"
	ColPrevLow    = "前低"
	ColVolH       = "波动率h"
	ColVolL       = "波动率l"
	ColVol        = "波动率"
)

// 两个驱动各自的必需列；其余列按可选处理，缺失时相应逻辑跳过。
var (
	PriceRequired      = []string{ColCode, ColPriceCNY, ColPriceHKD, ColChangePct, ColShareCount, ColUpdateTime}
	VolatilityRequired = []string{ColCode, ColVolH, ColVolL, ColVol}
)

// Columns 解析一次得到的列句柄集合，0 表示该列不存在，调用方据此开关逻辑，不再回查标题。
type Columns struct {
	Code       int
	PriceCNY   int
	PriceHKD   int
	ChangePct  int
	ShareCount int
	UpdateTime int
	PrevLow    int
	VolH       int
	VolL       int
	Vol        int
}

// Resolve 将标题映射解析为列句柄并校验必需列；缺列时报出具体列名。
func Resolve(headers map[string]int, required []string) (Columns, error) {
	for _, name := range required {
		if headers[name] == 0 {
			return Columns{}, fmt.Errorf("column %s is missing", name)
		}
	}
	return Columns{
		Code:       headers[ColCode],
		PriceCNY:   headers[ColPriceCNY],
		PriceHKD:   headers[ColPriceHKD],
		ChangePct:  headers[ColChangePct],
		ShareCount: headers[ColShareCount],
		UpdateTime: headers[ColUpdateTime],
		PrevLow:    headers[ColPrevLow],
		VolH:       headers[ColVolH],
		VolL:       headers[ColVolL],
		Vol:        headers[ColVol],
	}, nil
}
