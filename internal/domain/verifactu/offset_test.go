package verifactu_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/verifactu-api/internal/domain/verifactu"
)

func TestLastSunday2025(t *testing.T) {
	assert.Equal(t, 30, verifactu.LastSunday(2025, time.March).Day(),
		"último domingo de marzo de 2025")
	assert.Equal(t, 26, verifactu.LastSunday(2025, time.October).Day(),
		"último domingo de octubre de 2025")
}

func TestOffsetHours_DSTBoundaries(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"invierno enero", time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC), 1},
		{"instante exacto del cambio de marzo (incluido)", time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), 2},
		{"un segundo antes del cambio de marzo", time.Date(2025, 3, 29, 23, 59, 59, 0, time.UTC), 1},
		{"pleno verano", time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), 2},
		{"un segundo antes del cambio de octubre", time.Date(2025, 10, 25, 23, 59, 59, 0, time.UTC), 2},
		{"instante exacto del cambio de octubre (excluido)", time.Date(2025, 10, 26, 0, 0, 0, 0, time.UTC), 1},
		{"invierno diciembre", time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifactu.OffsetHours(verifactu.ZoneMadrid, tt.now))
			// Canarias siempre una hora por detrás de la península.
			assert.Equal(t, tt.want-1, verifactu.OffsetHours(verifactu.ZoneCanary, tt.now))
		})
	}
}

func TestOffsetHours_UnknownZone(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, verifactu.OffsetHours("America/Bogota", now))
}

func TestTimestamp(t *testing.T) {
	winter := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	summer := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-01-01T10:00:00+01:00", verifactu.Timestamp(verifactu.ZoneMadrid, winter))
	assert.Equal(t, "2025-07-01T10:00:00+02:00", verifactu.Timestamp(verifactu.ZoneMadrid, summer))
	assert.Equal(t, "2025-01-01T10:00:00+00:00", verifactu.Timestamp(verifactu.ZoneCanary, winter))
	assert.Equal(t, "2025-07-01T10:00:00+01:00", verifactu.Timestamp(verifactu.ZoneCanary, summer))
}
