package verifactu_test

import (
	"testing"
	"time"

	"github.com/jhoicas/verifactu-api/pkg/verifactu"
	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	dt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		formula string
		num     uint
		want    string
	}{
		{"fórmula por defecto", "%y%/%n.8%", 1, "25/00000001"},
		{"año en 4 dígitos", "%Y%-%n%", 42, "2025-42"},
		{"prefijo rectificativa", "R-%y%/%n.8%", 7, "R-25/00000007"},
		{"sin relleno", "%n%", 123, "123"},
		{"relleno menor que el número", "%n.2%", 12345, "12345"},
		{"sin directivas", "FACTURA", 9, "FACTURA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifactu.FormatNumber(tt.formula, dt, tt.num))
		})
	}
}

func TestFormatNumber_YearFollowsIssueDate(t *testing.T) {
	dt := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "26/00000002", verifactu.FormatNumber("%y%/%n.8%", dt, 2))
}
