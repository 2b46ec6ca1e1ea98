package dashboard

import "time"

// DisplayZone is the zone dates are rendered in (Brasília time, no DST).
var DisplayZone = time.FixedZone("BRT", -3*60*60)

// FormatDate renders t as dd/mm/yyyy in DisplayZone.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(DisplayZone).Format("02/01/2006")
}
