// Package sheet 封装 Excel 工作簿：按标题定位列、扫描代码列、暂存写入并一次性落盘。
package sheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const headerRow = 1

// Book 一次驱动调用打开一次：全量读入内存，迭代期间只暂存写入，最后统一应用并保存。
type Book struct {
	f       *excelize.File
	path    string
	sheet   string
	intents []intent
}

// intent 单条写入意图：(行, 列, 值)，行列均为 1 基。
type intent struct {
	row   int
	col   int
	value interface{}
}

// Open 打开工作簿并检查目标表存在。
func Open(path, sheet string) (*Book, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		_ = f.Close()
		return nil, fmt.Errorf("sheet %s is not exist", sheet)
	}
	return &Book{f: f, path: path, sheet: sheet}, nil
}

func (b *Book) Close() error {
	return b.f.Close()
}

// Headers 读首行，返回 标题 -> 1 基列号。
func (b *Book) Headers() (map[string]int, error) {
	rows, err := b.f.GetRows(b.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", b.sheet, err)
	}
	headers := make(map[string]int)
	if len(rows) >= headerRow {
		for i, v := range rows[headerRow-1] {
			v = strings.TrimSpace(v)
			if v != "" {
				headers[v] = i + 1
			}
		}
	}
	return headers, nil
}

// TickerRow 代码列里的一行：保留行号，空行不参与但不改变后续行的定位。
type TickerRow struct {
	Row  int
	Code string
}

// Tickers 自第 2 行起扫描代码列，跳过空单元格。
func (b *Book) Tickers(codeCol int) ([]TickerRow, error) {
	rows, err := b.f.GetRows(b.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", b.sheet, err)
	}
	var out []TickerRow
	for i := headerRow; i < len(rows); i++ {
		row := rows[i]
		if codeCol-1 >= len(row) {
			continue
		}
		code := strings.TrimSpace(row[codeCol-1])
		if code == "" {
			continue
		}
		out = append(out, TickerRow{Row: i + 1, Code: code})
	}
	return out, nil
}

// CellFloat 读取单元格浮点值；空白或不可解析返回 (0, false)。
func (b *Book) CellFloat(row, col int) (float64, bool) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return 0, false
	}
	raw, err := b.f.GetCellValue(b.sheet, cell)
	if err != nil {
		return 0, false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Stage 暂存一条写入意图，Commit 前不触碰工作簿。
func (b *Book) Stage(row, col int, value interface{}) {
	b.intents = append(b.intents, intent{row: row, col: col, value: value})
}

// Staged 返回已暂存的写入条数。
func (b *Book) Staged() int {
	return len(b.intents)
}

// Commit 应用全部暂存写入并保存文件，整个驱动调用只持久化这一次。
func (b *Book) Commit() error {
	for _, it := range b.intents {
		cell, err := excelize.CoordinatesToCellName(it.col, it.row)
		if err != nil {
			return fmt.Errorf("cell (%d,%d): %w", it.row, it.col, err)
		}
		if err := b.f.SetCellValue(b.sheet, cell, it.value); err != nil {
			return fmt.Errorf("write %s: %w", cell, err)
		}
	}
	b.intents = b.intents[:0]
	if err := b.f.Save(); err != nil {
		return fmt.Errorf("save workbook %s: %w", b.path, err)
	}
	return nil
}
