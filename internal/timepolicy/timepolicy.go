// Package timepolicy implements TideMark's explicit timezone policy: parsing
// a `UTC` or `+HH:MM`/`-HH:MM` zone spec, converting Unix timestamps into
// calendar dates under that zone, and computing natural-day deltas between
// two timestamps. Host local time is never consulted (spec.md §4.1).
package timepolicy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tmerrors "tidemark/internal/errors"
)

// Policy is a parsed, immutable timezone specification.
type Policy struct {
	name   string // canonical name, e.g. "UTC" or "+08:00"
	offset int    // seconds east of UTC
}

// Parse accepts the literal "UTC" (case-insensitive) or a fixed offset of
// the form ±HH:MM with HH in [0,14] and MM in [0,59]. Any other input fails
// with KindConfigParse.
func Parse(raw string) (Policy, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "UTC") {
		return Policy{name: "UTC", offset: 0}, nil
	}

	offset, ok := parseFixedOffset(trimmed)
	if !ok {
		return Policy{}, tmerrors.New(tmerrors.KindConfigParse,
			"invalid timezone %q; expected \"UTC\" or \"+HH:MM\"/\"-HH:MM\"", raw)
	}
	return Policy{name: trimmed, offset: offset}, nil
}

func parseFixedOffset(raw string) (int, bool) {
	if len(raw) != 6 {
		return 0, false
	}
	sign := raw[0]
	if sign != '+' && sign != '-' {
		return 0, false
	}
	if raw[3] != ':' {
		return 0, false
	}
	for _, i := range []int{1, 2, 4, 5} {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}

	hours, err := strconv.Atoi(raw[1:3])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(raw[4:6])
	if err != nil {
		return 0, false
	}
	if hours < 0 || hours > 14 || minutes < 0 || minutes > 59 {
		return 0, false
	}

	total := hours*3600 + minutes*60
	if sign == '-' {
		total = -total
	}
	return total, true
}

// CanonicalName returns the zone's canonical display form, used in explain
// records.
func (p Policy) CanonicalName() string { return p.name }

// DateOf returns the proleptic Gregorian calendar date of ts shifted by the
// policy's offset, as (year, month, day).
func (p Policy) DateOf(ts int64) (int, time.Month, int) {
	shifted := time.Unix(ts, 0).UTC().Add(time.Duration(p.offset) * time.Second)
	y, m, d := shifted.Date()
	return y, m, d
}

// julianDay returns the date's Julian day number, used only for subtraction;
// the epoch chosen is irrelevant as long as it is consistent.
func julianDay(y int, m time.Month, d int) int64 {
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	const julianEpochOffset = 2440588 // Julian day number of 1970-01-01
	return date.Unix()/86400 + julianEpochOffset
}

// DayDelta computes julian_day(target) - julian_day(anchor) in the
// configured zone.
func (p Policy) DayDelta(anchorTS, targetTS int64) int64 {
	ay, am, ad := p.DateOf(anchorTS)
	ty, tm, td := p.DateOf(targetTS)
	return julianDay(ty, tm, td) - julianDay(ay, am, ad)
}

// SameDate reports whether two timestamps fall on the same calendar date
// under this policy.
func (p Policy) SameDate(a, b int64) bool {
	ay, am, ad := p.DateOf(a)
	by, bm, bd := p.DateOf(b)
	return ay == by && am == bm && ad == bd
}

func (p Policy) String() string {
	return fmt.Sprintf("Policy(%s)", p.name)
}
