package schedule

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Parsed schedule expressions and loaded timezones are memoized so the
// alerting loop does not re-parse on every cycle.
var (
	cronCache = gocache.New(24*time.Hour, time.Hour)
	calCache  = gocache.New(24*time.Hour, time.Hour)
	zoneCache = gocache.New(24*time.Hour, time.Hour)

	cronParser = cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)
)

// NextExpected returns the next instant strictly after the reference at
// which the check expects a ping. It is a pure function of the check's
// schedule descriptor and the reference instant.
func NextExpected(check *models.Check, after time.Time) (time.Time, error) {
	switch check.Kind {
	case models.KindSimple:
		return after.Add(check.TimeoutDuration()), nil
	case models.KindCron:
		return nextCron(check.Schedule, check.TZ, after)
	case models.KindOnCalendar:
		return nextOnCalendar(check.Schedule, check.TZ, after)
	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %s", check.Kind)
	}
}

// Validate reports whether the check's schedule descriptor parses.
func Validate(check *models.Check) error {
	switch check.Kind {
	case models.KindSimple:
		if check.Timeout <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		return nil
	case models.KindCron:
		_, err := parseCron(check.Schedule)
		if err != nil {
			return err
		}
		_, err = loadZone(check.TZ)
		return err
	case models.KindOnCalendar:
		_, err := parseOnCalendar(check.Schedule)
		if err != nil {
			return err
		}
		_, err = loadZone(check.TZ)
		return err
	default:
		return fmt.Errorf("unknown schedule kind: %s", check.Kind)
	}
}

func nextCron(expr, tz string, after time.Time) (time.Time, error) {
	sched, err := parseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := loadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	// cron.Schedule.Next works on wall-clock time in the given location.
	// Wall-clock minutes swallowed by a DST jump do not fire.
	next := sched.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no occurrence of %q after %s", expr, after)
	}

	// A repeated DST hour fires once, at its first occurrence. The parser
	// walks wall-clock fields and can land on the second pass of the
	// repeated hour; time.Date maps an ambiguous wall-clock reading to its
	// first instant, which exposes those.
	canonical := time.Date(next.Year(), next.Month(), next.Day(),
		next.Hour(), next.Minute(), next.Second(), 0, loc)
	if canonical.Before(next) {
		next = sched.Next(next)
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("no occurrence of %q after %s", expr, after)
		}
	}
	return next, nil
}

func nextOnCalendar(expr, tz string, after time.Time) (time.Time, error) {
	cal, err := parseOnCalendar(expr)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := loadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	return cal.Next(after.In(loc))
}

func parseCron(expr string) (cron.Schedule, error) {
	if cached, ok := cronCache.Get(expr); ok {
		return cached.(cron.Schedule), nil
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("bad cron expression %q: %w", expr, err)
	}
	cronCache.SetDefault(expr, sched)
	return sched, nil
}

func parseOnCalendar(expr string) (*onCalendar, error) {
	if cached, ok := calCache.Get(expr); ok {
		return cached.(*onCalendar), nil
	}
	cal, err := parseOnCalendarExpr(expr)
	if err != nil {
		return nil, err
	}
	calCache.SetDefault(expr, cal)
	return cal, nil
}

func loadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	if cached, ok := zoneCache.Get(name); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("bad timezone %q: %w", name, err)
	}
	zoneCache.SetDefault(name, loc)
	return loc, nil
}
