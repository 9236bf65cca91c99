// Package sheet 把结果行写成 .xlsx 表格。
package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/numscan/internal/domain"
)

const (
	SheetName      = "Sheet1"
	HeaderNumber   = "Contact Number"
	HeaderValidity = "Validation Status"
)

// Write 把 rows 写为单 sheet 的 xlsx 到 w。
//
// withStatus=true 时输出两列（号码、校验状态），否则只输出号码列。
// 行顺序由调用方决定，这里不再排序。
func Write(w io.Writer, rows []domain.ReportRow, withStatus bool) error {
	f := excelize.NewFile()
	defer f.Close()

	header := []interface{}{HeaderNumber}
	if withStatus {
		header = append(header, HeaderValidity)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("写表头失败：%w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		// 号码一律按字符串写入，避免前导 '+' 或长数字被当成数值。
		vals := []interface{}{r.Number}
		if withStatus {
			vals = append(vals, r.Status)
		}
		if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
			return fmt.Errorf("写第 %d 行失败：%w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "B", 22); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写出 xlsx 失败：%w", err)
	}
	return nil
}
