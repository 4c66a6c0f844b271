package condense

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSince(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		withDays bool
		want     string
	}{
		{name: "zero", elapsed: 0, want: "0m"},
		{name: "negative", elapsed: -5 * time.Minute, want: "0m"},
		{name: "seconds round down", elapsed: 59 * time.Second, want: "0m"},
		{name: "minutes", elapsed: 42 * time.Minute, want: "42m"},
		{name: "hours", elapsed: 3*time.Hour + 5*time.Minute, want: "3h 5m"},
		{name: "whole hours", elapsed: 2 * time.Hour, want: "2h 0m"},
		{name: "hours beyond a day", elapsed: 27*time.Hour + 15*time.Minute, want: "27h 15m"},
		{name: "days", elapsed: 27*time.Hour + 15*time.Minute, withDays: true, want: "1d 3h 15m"},
		{name: "days with zero hours", elapsed: 48*time.Hour + 7*time.Minute, withDays: true, want: "2d 0h 7m"},
		{name: "under a day with days form", elapsed: 90 * time.Minute, withDays: true, want: "1h 30m"},
		{name: "minutes with days form", elapsed: 9 * time.Minute, withDays: true, want: "9m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSince(tt.elapsed, tt.withDays))
		})
	}
}
