package duration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zalgonoise/bansuri/duration"
)

func TestParse(t *testing.T) {
	for _, tt := range []struct {
		name    string
		in      string
		wantSec int
		wantOK  bool
	}{
		{"seconds", "30s", 30, true},
		{"minutes", "5m", 300, true},
		{"hours", "1h", 3600, true},
		{"digits", "120", 120, true},
		{"none literal", "none", 0, false},
		{"zero literal", "0", 0, false},
		{"empty", "", 0, false},
		{"uppercase unit", "2H", 7200, true},
		{"garbage", "soon", 0, false},
		{"negative", "-5s", 0, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := duration.Parse(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSec, got)
		})
	}
}

func TestParseAny(t *testing.T) {
	sec, ok := duration.ParseAny(float64(45))
	assert.True(t, ok)
	assert.Equal(t, 45, sec)

	sec, ok = duration.ParseAny("1m")
	assert.True(t, ok)
	assert.Equal(t, 60, sec)

	_, ok = duration.ParseAny(nil)
	assert.False(t, ok)
}
