// Package render выводит собранные отчёты в CSV и PDF.
package render

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/mmeshcher/life-admin-system/internal/statement"
)

// Filename возвращает имя файла отчёта, например billing_ppszesa_2024-04.pdf.
func Filename(s statement.Statement, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", s.Kind, s.Subject, s.Month.Format("2006-01"), ext)
}

func header(kind statement.Kind) []string {
	if kind == statement.KindCommission {
		return []string{"Contract ID", "Client", "Status", "Monthly Premium", "Commission"}
	}
	return []string{"Contract ID", "Client", "Status", "Agent Code", "Agent", "Contract Premium"}
}

func cells(kind statement.Kind, r statement.Row) []string {
	if kind == statement.KindCommission {
		return []string{r.ContractID, r.ClientName, string(r.Status), r.MonthlyPremium.StringFixed(2), r.Commission.StringFixed(2)}
	}
	return []string{r.ContractID, r.ClientName, string(r.Status), r.AgentCode, r.AgentName, r.ContractPremium.StringFixed(2)}
}

func totals(s statement.Statement) []string {
	if s.Kind == statement.KindCommission {
		return []string{"TOTAL", "", "", s.TotalPremium.StringFixed(2), s.TotalCommission.StringFixed(2)}
	}
	return []string{"TOTAL", "", "", "", "", s.TotalPremium.StringFixed(2)}
}

// CSV пишет отчёт в CSV: заголовок, строки по полисам и строка итогов.
func CSV(w io.Writer, s statement.Statement) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header(s.Kind)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range s.Rows {
		if err := cw.Write(cells(s.Kind, r)); err != nil {
			return fmt.Errorf("write row %s: %w", r.ContractID, err)
		}
	}
	if err := cw.Write(totals(s)); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func title(s statement.Statement) string {
	if s.Kind == statement.KindCommission {
		return "Commission Statement"
	}
	return "Billing Statement"
}

// PDF формирует отчёт в PDF.
func PDF(company string, s statement.Statement) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, title(s), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, company, props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(14,
		col.New(6).Add(
			text.New("Subject: "+s.Subject, props.Text{Top: 0, Size: 9}),
			text.New("Month: "+s.Label(), props.Text{Top: 5, Size: 9}),
		),
		col.New(6),
	)

	widths := columnWidths(s.Kind)
	amounts := amountColumns(s.Kind)

	m.AddRow(8, textCols(header(s.Kind), widths, amounts, props.Text{Style: fontstyle.Bold, Size: 8})...)
	for _, r := range s.Rows {
		m.AddRow(7, textCols(cells(s.Kind, r), widths, amounts, props.Text{Size: 8})...)
	}
	m.AddRow(8, textCols(totals(s), widths, amounts, props.Text{Style: fontstyle.Bold, Size: 8})...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func columnWidths(kind statement.Kind) []int {
	if kind == statement.KindCommission {
		return []int{2, 4, 2, 2, 2}
	}
	return []int{2, 3, 2, 1, 2, 2}
}

// amountColumns задаёт число денежных столбцов в конце строки, они выравниваются вправо.
func amountColumns(kind statement.Kind) int {
	if kind == statement.KindCommission {
		return 2
	}
	return 1
}

func textCols(values []string, widths []int, amounts int, p props.Text) []core.Col {
	cols := make([]core.Col, 0, len(values))
	for i, v := range values {
		cp := p
		if i >= len(values)-amounts {
			cp.Align = align.Right
		}
		cols = append(cols, text.NewCol(widths[i], v, cp))
	}
	return cols
}
