package calc

// UpdatePreviousLow 维护前低水位线：首次观测直接记为新价，之后只降不升。
// current 为 nil 表示表格中尚无前低。
func UpdatePreviousLow(current *float64, price float64) float64 {
	if current == nil {
		return price
	}
	if price < *current {
		return price
	}
	return *current
}
