package verifactu

import (
	"fmt"
	"time"
)

// Zonas soportadas por el protocolo. Cualquier otro valor produce huso +00:00.
const (
	ZoneMadrid = "Europe/Madrid"
	ZoneCanary = "Atlantic/Canary"
)

// LastSunday devuelve el último domingo del mes a medianoche.
func LastSunday(year int, month time.Month) time.Time {
	// Día 0 del mes siguiente = último día del mes.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := int(last.Weekday()) // Sunday = 0
	return last.AddDate(0, 0, -offset)
}

// OffsetHours calcula el desfase UTC en horas para la fecha dada según la
// regla europea: +1h entre el último domingo de marzo (incluido) y el último
// domingo de octubre (excluido). Canarias va siempre una hora por detrás de
// la península. now se interpreta como hora de pared de la zona, igual que
// las fronteras.
func OffsetHours(zone string, now time.Time) int {
	offset := 0
	if zone == ZoneMadrid || zone == ZoneCanary {
		marzo := LastSunday(now.Year(), time.March)
		octubre := LastSunday(now.Year(), time.October)
		naive := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.UTC)
		if !naive.Before(marzo) && naive.Before(octubre) {
			offset = 2
		} else {
			offset = 1
		}
		if zone == ZoneCanary {
			offset--
		}
	}
	return offset
}

// Timestamp formatea now como FechaHoraHusoGenRegistro: ISO-8601 con desfase
// numérico explícito (ej. 2025-01-01T10:00:00+01:00).
func Timestamp(zone string, now time.Time) string {
	return fmt.Sprintf("%s%+03d:00", now.Format("2006-01-02T15:04:05"), OffsetHours(zone, now))
}
