package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadRowsCSV(t *testing.T) {
	data := "contract id,amount\nP00001,1.00\n\nP00002, 2.50\n"

	rows, err := ReadRows("receipts.CSV", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "P00001", rows[0].Cell(0))
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "2.50", rows[1].Cell(1))
	assert.Equal(t, "", rows[1].Cell(5))
}

func TestReadRowsCSVMalformedRow(t *testing.T) {
	data := "name,surname,branch,date joining\n" +
		"Tendai,Moyo,HARARE,2023-01-10\n" +
		"Car\"l,Three,HARARE,2021-01-01\n" +
		"Chipo,Dube,MUTARE,2023-02-11\n"

	rows, err := ReadRows("agents.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.NoError(t, rows[0].Err)
	assert.Equal(t, 3, rows[1].Line)
	assert.ErrorIs(t, rows[1].Err, ErrMalformedRow)
	assert.Empty(t, rows[1].Cells)
	assert.Equal(t, 4, rows[2].Line)
	assert.NoError(t, rows[2].Err)
	assert.Equal(t, "Dube", rows[2].Cell(1))
}

func TestReadRowsXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"name", "surname", "branch", "date joining"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Tendai", "Moyo", "HARARE", "2023-01-10"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Chipo", "Dube", "MUTARE", "2023-02-11"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ReadRows("agents.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Tendai", rows[0].Cell(0))
	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "MUTARE", rows[1].Cell(2))
}

func TestReadRowsUnsupported(t *testing.T) {
	_, err := ReadRows("agents.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadRows("broken.xlsx", strings.NewReader("not a zip"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
