// Package expression compiles compact multi-timer expressions such as
// "m25m5x2m15" into an ordered list of timer segments.
package expression

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrEmptyExpression is returned when an expression contains no minute tokens.
	ErrEmptyExpression = errors.New("expression: no timer tokens found")
	// ErrExpressionTooLarge is returned when a token or the expanded
	// expression exceeds MaxMinutes, MaxRepeat or MaxTimers.
	ErrExpressionTooLarge = errors.New("expression: too large")
)

// SegmentExt is the container extension given to compiled segment names.
const SegmentExt = ".mp4"

// Limits on a single expression.
const (
	// MaxMinutes is the longest single timer, one day.
	MaxMinutes = 1440
	// MaxDurationSeconds is MaxMinutes in seconds.
	MaxDurationSeconds = MaxMinutes * 60
	// MaxRepeat is the largest accepted x<R>.
	MaxRepeat = 100
	// MaxTimers bounds the number of segments after expansion.
	MaxTimers = 100
)

var tokenRe = regexp.MustCompile(`([mx])(\d+)`)

// TimerSpec is one segment of a compiled expression.
type TimerSpec struct {
	DurationSeconds int
	OutputName      string
}

// Minutes returns the segment length in whole minutes.
func (t TimerSpec) Minutes() int {
	return t.DurationSeconds / 60
}

// Compile scans expr left to right. "m<N>" queues an N-minute timer and
// "x<R>" repeats the timer queued directly before it R times. Everything
// still queued at the end of the input is emitted once. Characters outside
// the two token forms are skipped, so an expression without tokens compiles
// to an empty slice. Expressions that exceed the limits also compile to an
// empty slice; use Parse to tell the two apart.
func Compile(expr string) []TimerSpec {
	specs, err := Parse(expr)
	if err != nil {
		return nil
	}
	return specs
}

// Parse compiles expr like Compile and reports ErrEmptyExpression when no
// timer results and ErrExpressionTooLarge when a limit is exceeded.
func Parse(expr string) ([]TimerSpec, error) {
	var (
		minutes []int
		pending []int
	)

	for _, tok := range tokenRe.FindAllStringSubmatch(expr, -1) {
		n, err := strconv.Atoi(tok[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s%s", ErrExpressionTooLarge, tok[1], tok[2])
		}

		switch tok[1] {
		case "m":
			if n > MaxMinutes {
				return nil, fmt.Errorf("%w: m%d exceeds %d minutes", ErrExpressionTooLarge, n, MaxMinutes)
			}
			pending = append(pending, n)
		case "x":
			if len(pending) == 0 {
				continue
			}
			if n > MaxRepeat {
				return nil, fmt.Errorf("%w: x%d exceeds %d repeats", ErrExpressionTooLarge, n, MaxRepeat)
			}
			last := len(pending) - 1
			if len(minutes)+last+n > MaxTimers {
				return nil, fmt.Errorf("%w: more than %d timers", ErrExpressionTooLarge, MaxTimers)
			}
			minutes = append(minutes, pending[:last]...)
			for i := 0; i < n; i++ {
				minutes = append(minutes, pending[last])
			}
			pending = pending[:0]
		}

		if len(minutes)+len(pending) > MaxTimers {
			return nil, fmt.Errorf("%w: more than %d timers", ErrExpressionTooLarge, MaxTimers)
		}
	}
	minutes = append(minutes, pending...)

	if len(minutes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyExpression, expr)
	}
	return name(minutes), nil
}

// Validate reports whether expr compiles to at least one timer within the limits.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// name assigns timer_<N>m.mp4 to the first occurrence of each minute value
// and timer_<N>m_<R>.mp4, R starting at 2, to later ones.
func name(minutes []int) []TimerSpec {
	specs := make([]TimerSpec, 0, len(minutes))
	seen := make(map[int]int, len(minutes))

	for _, m := range minutes {
		seen[m]++
		base := fmt.Sprintf("timer_%dm", m)
		if seen[m] > 1 {
			base = fmt.Sprintf("%s_%d", base, seen[m])
		}
		specs = append(specs, TimerSpec{
			DurationSeconds: m * 60,
			OutputName:      base + SegmentExt,
		})
	}

	return specs
}
