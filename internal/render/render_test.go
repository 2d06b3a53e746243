package render

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/statement"
)

func commissionStatement() statement.Statement {
	return statement.Statement{
		Kind:    statement.KindCommission,
		Month:   time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		Subject: "A0001",
		Rows: []statement.Row{
			{
				ContractID:     "P00001",
				ClientName:     "Rudo Chikore",
				Status:         lifecycle.StatusActive,
				MonthlyPremium: decimal.RequireFromString("1"),
				Commission:     decimal.RequireFromString("0.1"),
			},
		},
		TotalPremium:    decimal.RequireFromString("1"),
		TotalCommission: decimal.RequireFromString("0.1"),
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "commission_A0001_2024-04.pdf", Filename(commissionStatement(), "pdf"))
}

func TestCSVCommission(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, commissionStatement()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Contract ID", "Client", "Status", "Monthly Premium", "Commission"}, records[0])
	assert.Equal(t, []string{"P00001", "Rudo Chikore", "Active", "1.00", "0.10"}, records[1])
	assert.Equal(t, []string{"TOTAL", "", "", "1.00", "0.10"}, records[2])
}

func TestCSVBillingEmpty(t *testing.T) {
	s := statement.Statement{
		Kind:         statement.KindBilling,
		Month:        time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		Subject:      "ppszesa",
		Rows:         []statement.Row{},
		TotalPremium: decimal.Zero,
	}

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, s))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0], 6)
	assert.Equal(t, "0.00", records[1][5])
}

func TestPDF(t *testing.T) {
	data, err := PDF("Simple Life", commissionStatement())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
