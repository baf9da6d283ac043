package service

import (
	"fmt"

	"staff-portal/internal/domain"

	"github.com/xuri/excelize/v2"
)

// 导出表头
var (
	adminExportHeader = []string{"ID", "Full Name", "Email", "Created By", "Created At"}
	staffExportHeader = []string{"ID", "Full Name", "Email", "Branch", "Role", "Phone Number", "Nationality", "Created By", "Created At"}
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func accountRow(kind domain.AccountKind, item *domain.AccountListItem) []any {
	createdAt := item.CreatedAt.Format("2006-01-02 15:04:05")
	if kind == domain.AccountKindAdmin {
		return []any{item.ID, item.FullName, item.Email, deref(item.CreatorName), createdAt}
	}
	var phone, nationality string
	if item.Staff != nil {
		phone = deref(item.Staff.PhoneNumber)
		nationality = deref(item.Staff.Nationality)
	}
	return []any{
		item.ID,
		item.FullName,
		item.Email,
		deref(item.BranchName),
		deref(item.RoleName),
		phone,
		nationality,
		deref(item.CreatorName),
		createdAt,
	}
}

// renderAccountsWorkbook 生成账户导出 Excel 文件
func renderAccountsWorkbook(kind domain.AccountKind, rows []*domain.AccountListItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	header := adminExportHeader
	sheetName := "Admins"
	if kind == domain.AccountKindStaff {
		header = staffExportHeader
		sheetName = "Staff"
	}

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, 22); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	// 写入数据（从第2行开始）
	for i, item := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := accountRow(kind, item)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
