package service

import (
	"time"

	"github.com/goodsign/monday"
)

const (
	isoDate       = "2006-01-02"
	longDateShape = "2 de January de 2006"
)

// longDate renders an ISO calendar date as "12 de marzo de 2024".
// Unparseable input is returned unchanged.
func longDate(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse(isoDate, iso)
	if err != nil {
		return iso
	}
	return monday.Format(t, longDateShape, monday.LocaleEsES)
}

// longDateTime appends " a las <hh:mm>" when a time is given.
func longDateTime(iso string, clock *string) string {
	formatted := longDate(iso)
	if clock == nil || *clock == "" {
		return formatted
	}
	return formatted + " a las " + *clock
}

// shortDate renders a timestamp as d/M/yyyy.
func shortDate(t time.Time) string {
	return t.Format("2/1/2006")
}

// shortISODate renders an ISO calendar date as d/M/yyyy.
func shortISODate(iso string) string {
	t, err := time.Parse(isoDate, iso)
	if err != nil {
		return iso
	}
	return shortDate(t)
}
