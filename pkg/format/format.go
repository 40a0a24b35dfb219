// Package format provides human-readable formatting for catalog values.
package format

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number formats a number with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Compact formats a number in compact notation.
// Example: Compact(1234567) => "1.2M"
func Compact(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return trimZero(float64(n)/1_000_000_000) + "B"
	case n >= 1_000_000:
		return trimZero(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		return trimZero(float64(n)/1_000) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

// trimZero renders one decimal, dropping a trailing ".0".
func trimZero(f float64) string {
	s := strconv.FormatFloat(f, 'f', 1, 64)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		return s[:len(s)-2]
	}
	return s
}

// Views formats a view count for display.
// Example: Views(1) => "1 view", Views(15320) => "15,320 views"
func Views(n int64) string {
	if n == 1 {
		return "1 view"
	}
	return Number(n) + " views"
}

// MediaDuration formats a running time as m:ss or h:mm:ss.
// Example: MediaDuration(187*time.Second) => "3:07"
func MediaDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// RelativeTime formats t relative to now.
// Example: RelativeTime(now.Add(-5*time.Minute), now) => "5 minutes ago"
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "just now"
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day") + " ago"
	case d < 365*24*time.Hour:
		return plural(int(d.Hours()/(24*30)), "month") + " ago"
	default:
		return plural(int(d.Hours()/(24*365)), "year") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
