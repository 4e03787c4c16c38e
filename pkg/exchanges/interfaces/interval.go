package interfaces

import (
	"fmt"
	"sort"
	"time"
)

// Interval is a canonical candle granularity token.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// intervalDurations gives the nominal length of each canonical interval.
// A month is approximated at 30 days; it is only used to derive close times
// for exchanges that report just one bound of the candle window.
var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
	Interval1M:  30 * 24 * time.Hour,
}

// Duration returns the nominal duration of the interval and whether the
// token is one of the canonical nine.
func (i Interval) Duration() (time.Duration, bool) {
	d, ok := intervalDurations[i]
	return d, ok
}

// Milliseconds returns the nominal interval length in epoch-millisecond
// units, or 0 for a non-canonical token.
func (i Interval) Milliseconds() int64 {
	d, ok := intervalDurations[i]
	if !ok {
		return 0
	}
	return d.Milliseconds()
}

// IntervalMap translates canonical interval tokens into one exchange's
// native tokens. The mapping is partial: an exchange that has no native
// equivalent simply omits the entry, and Translate fails fast instead of
// proceeding with an unmapped value or silently substituting a default.
// The map is pure lookup state and performs no I/O.
type IntervalMap map[Interval]string

// Translate returns the native token for the requested canonical interval.
// An absent entry yields an InvalidParameterError naming the requested
// interval and everything the exchange does support.
func (m IntervalMap) Translate(interval Interval) (string, error) {
	if native, ok := m[interval]; ok {
		return native, nil
	}
	return "", NewInvalidParameterError(fmt.Sprintf(
		"unsupported interval %q, supported intervals: %v", interval, m.Supported()))
}

// Supported lists the canonical intervals this exchange can serve, sorted
// by duration.
func (m IntervalMap) Supported() []Interval {
	out := make([]Interval, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		da, _ := out[a].Duration()
		db, _ := out[b].Duration()
		return da < db
	})
	return out
}
