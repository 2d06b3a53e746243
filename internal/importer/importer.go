// Package importer читает строки загружаемых таблиц (CSV и XLSX).
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat возвращается для файла, который не является CSV или Excel.
var ErrUnsupportedFormat = errors.New("unsupported file format, use Excel or CSV")

// ErrMalformedRow означает, что строку файла не удалось разобрать на ячейки.
var ErrMalformedRow = errors.New("malformed row")

// Row: строка данных таблицы. Line содержит номер строки в файле, заголовок занимает строку 1.
// Err заполняется для строки, которую не удалось разобрать; Cells у такой строки пусты.
type Row struct {
	Line  int
	Cells []string
	Err   error
}

// Cell возвращает значение столбца i без окружающих пробелов.
func (r Row) Cell(i int) string {
	if i >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[i])
}

// ReadRows читает строки данных из файла, пропуская заголовок.
// Формат определяется по расширению имени файла.
func ReadRows(filename string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx", ".xlsm":
		return readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

func readCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		rows   []Row
		header = true
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			if header {
				header = false
				continue
			}
			rows = append(rows, Row{
				Line: parseErr.StartLine,
				Err:  fmt.Errorf("%w: %v", ErrMalformedRow, parseErr.Err),
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, Row{Line: line, Cells: record})
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = sheets[0]
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var rows []Row
	for i, cells := range all {
		if i == 0 {
			continue
		}
		rows = append(rows, Row{Line: i + 1, Cells: cells})
	}
	return rows, nil
}
