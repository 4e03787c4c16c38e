package interfaces

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalMapTranslate(t *testing.T) {
	m := IntervalMap{
		Interval1m: "1",
		Interval1h: "60",
		Interval1d: "D",
	}

	tests := []struct {
		name     string
		interval Interval
		want     string
		wantErr  bool
	}{
		{"mapped minute", Interval1m, "1", false},
		{"mapped hour", Interval1h, "60", false},
		{"mapped day", Interval1d, "D", false},
		{"unmapped canonical", Interval4h, "", true},
		{"unknown token", Interval("3s"), "", true},
		{"empty token", Interval(""), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			native, err := m.Translate(tt.interval)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidParameter),
					"unmapped interval must fail with an invalid parameter error, got %v", err)
				assert.Empty(t, native)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, native)
		})
	}
}

func TestIntervalMapTranslateNamesSupportedIntervals(t *testing.T) {
	m := IntervalMap{Interval1m: "1m", Interval1d: "1d"}

	_, err := m.Translate(Interval4h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4h")
	assert.Contains(t, err.Error(), "1m")
	assert.Contains(t, err.Error(), "1d")
}

func TestIntervalMapSupportedSortedByDuration(t *testing.T) {
	m := IntervalMap{
		Interval1d:  "d",
		Interval1m:  "m",
		Interval4h:  "h4",
		Interval15m: "m15",
	}

	assert.Equal(t, []Interval{Interval1m, Interval15m, Interval4h, Interval1d}, m.Supported())
}

func TestIntervalDuration(t *testing.T) {
	d, ok := Interval1h.Duration()
	require.True(t, ok)
	assert.Equal(t, int64(3600000), d.Milliseconds())
	assert.Equal(t, int64(3600000), Interval1h.Milliseconds())

	_, ok = Interval("2h").Duration()
	assert.False(t, ok)
	assert.Zero(t, Interval("2h").Milliseconds())
}
