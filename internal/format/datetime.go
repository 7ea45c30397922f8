package format

import "time"

// TimeLayout returns the Go time layout for the given preference.
// timeFormat: "12" or "24". Default "12".
func TimeLayout(timeFormat string) string {
	if timeFormat == "24" {
		return "15:04:05"
	}
	return "3:04:05 PM"
}

// DateLayout returns the Go date layout for the given preference.
// dateFormat: "dd-mm-yyyy", "mm-dd-yyyy", "yyyy-mm-dd". Default "dd-mm-yyyy".
func DateLayout(dateFormat string) string {
	switch dateFormat {
	case "mm-dd-yyyy":
		return "01-02-2006"
	case "yyyy-mm-dd":
		return "2006-01-02"
	default:
		return "02-01-2006"
	}
}

// DateTime formats t as date and time, e.g. the "last updated" line and
// audit log rows.
func DateTime(t time.Time, timeFormat, dateFormat string) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(DateLayout(dateFormat) + " " + TimeLayout(timeFormat))
}

// Clock formats t as time of day only.
func Clock(t time.Time, timeFormat string) string {
	return t.Format(TimeLayout(timeFormat))
}
