package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a finishing or grid ordinal. Valid is false when the upstream
// value was not numeric ("R", "DNF", "W", empty).
type Position struct {
	Value int  `json:"value"`
	Valid bool `json:"valid"`
}

// ParsePosition converts an upstream position string.
func ParsePosition(s string) Position {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return Position{}
	}
	return Position{Value: n, Valid: true}
}

// Is reports whether p is the numeric position n.
func (p Position) Is(n int) bool {
	return p.Valid && p.Value == n
}

// Points is a championship points value. Valid is false when the upstream
// value could not be parsed as a non-negative decimal.
type Points struct {
	Value decimal.Decimal `json:"value"`
	Valid bool            `json:"valid"`
}

// ParsePoints converts an upstream points string ("25", "0.5").
func ParsePoints(s string) Points {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return Points{}
	}
	return Points{Value: d, Valid: true}
}

// StopDuration is a pit stop duration. Valid is false when the upstream
// string could not be parsed; such entries are never treated as zero.
type StopDuration struct {
	Value time.Duration `json:"value"`
	Valid bool          `json:"valid"`
}

var nanosPerSecond = decimal.NewFromInt(int64(time.Second))

// ParseStopDuration parses either plain seconds ("23.456") or
// minutes:seconds ("1:23.456").
func ParseStopDuration(s string) StopDuration {
	s = strings.TrimSpace(s)
	if s == "" {
		return StopDuration{}
	}

	minutes := int64(0)
	secPart := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		m, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil || m < 0 {
			return StopDuration{}
		}
		minutes = m
		secPart = s[i+1:]
		if strings.ContainsRune(secPart, ':') {
			return StopDuration{}
		}
	}

	secs, err := decimal.NewFromString(secPart)
	if err != nil || secs.IsNegative() {
		return StopDuration{}
	}
	total := secs.Add(decimal.NewFromInt(minutes * 60))
	return StopDuration{Value: time.Duration(total.Mul(nanosPerSecond).IntPart()), Valid: true}
}

// Seconds returns the duration in seconds.
func (d StopDuration) Seconds() float64 {
	return d.Value.Seconds()
}
