package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronInterval validates a five field cron expression or a descriptor
// (@hourly, @every 5m) and returns the gap between its first two runs
// after now.
func CronInterval(expr string, now time.Time) (time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("empty cron expression: %w", ErrBadParameter)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return 0, fmt.Errorf("cron expression %q: %v: %w", expr, err, ErrBadParameter)
	}
	first := schedule.Next(now)
	return schedule.Next(first).Sub(first), nil
}

// ParseInterval parses a watch interval, either ISO-8601 (PT30S, P1DT2H)
// or the Go form (30s). The interval must be positive.
func ParseInterval(s string) (time.Duration, error) {
	var d time.Duration
	var err error
	if strings.HasPrefix(s, "P") {
		d, err = parseISOInterval(s)
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("interval %q: %v: %w", s, err, ErrBadParameter)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval %q must be positive: %w", s, ErrBadParameter)
	}
	return d, nil
}

type isoUnit struct {
	designator byte
	size       time.Duration
	time       bool
}

// Years and months have no fixed length, so only days and the time part
// are accepted.
var isoUnits = []isoUnit{
	{'D', 24 * time.Hour, false},
	{'H', time.Hour, true},
	{'M', time.Minute, true},
	{'S', time.Second, true},
}

// parseISOInterval reads P[nD][T[nH][nM][n[.f]S]]. Components are unsigned,
// appear at most once and in order; only seconds take a fraction.
func parseISOInterval(s string) (time.Duration, error) {
	rest, ok := strings.CutPrefix(s, "P")
	if !ok || rest == "" {
		return 0, fmt.Errorf("no components")
	}

	var total time.Duration
	inTime := false
	next := 0
	for rest != "" {
		if rest[0] == 'T' {
			if inTime {
				return 0, fmt.Errorf("second time designator")
			}
			inTime = true
			rest = rest[1:]
			if rest == "" {
				return 0, fmt.Errorf("empty time part")
			}
			continue
		}

		i := digits(rest)
		if i == 0 {
			return 0, fmt.Errorf("expected digits at %q", rest)
		}
		whole := rest[:i]
		rest = rest[i:]
		var frac string
		if rest != "" && (rest[0] == '.' || rest[0] == ',') {
			j := digits(rest[1:])
			if j == 0 || j > 9 {
				return 0, fmt.Errorf("fraction needs 1 to 9 digits")
			}
			frac = rest[1 : 1+j]
			rest = rest[1+j:]
		}
		if rest == "" {
			return 0, fmt.Errorf("number %s has no designator", whole)
		}

		k := next
		for k < len(isoUnits) && (isoUnits[k].designator != rest[0] || isoUnits[k].time != inTime) {
			k++
		}
		if k == len(isoUnits) {
			return 0, fmt.Errorf("unexpected designator %q", rest[0])
		}
		unit := isoUnits[k]
		rest = rest[1:]
		next = k + 1
		if frac != "" && unit.designator != 'S' {
			return 0, fmt.Errorf("fraction on %c", unit.designator)
		}

		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > math.MaxInt64/int64(unit.size) {
			return 0, fmt.Errorf("%s%c is out of range", whole, unit.designator)
		}
		v := time.Duration(n) * unit.size
		if frac != "" {
			f, _ := strconv.ParseInt(frac, 10, 64)
			v += time.Duration(f) * (time.Second / time.Duration(math.Pow10(len(frac))))
		}
		if total > math.MaxInt64-v {
			return 0, fmt.Errorf("out of range")
		}
		total += v
	}
	return total, nil
}

func digits(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}
