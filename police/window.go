package police

import "time"

// DefaultWindowDays is the span of one pagination window. The API's
// date-window and result-volume limits make a single wide-range request
// unreliable; 15-day chunks keep each window's volume within safe bounds
// while the offset loop handles within-window volume.
const DefaultWindowDays = 15

// Window is one inclusive calendar-day range bounding a pagination sweep.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows partitions [from, to] into consecutive spans of the given length,
// newest first. Each window's end is the previous window's start minus one
// day, and the oldest window's start is clipped so it never precedes from.
// The result covers the full range with no gaps and no overlaps. A range
// with to before from yields no windows.
func Windows(from, to time.Time, days int) []Window {
	if days <= 0 {
		days = DefaultWindowDays
	}
	from = truncateDay(from)
	to = truncateDay(to)

	var windows []Window
	end := to
	for !end.Before(from) {
		start := end.AddDate(0, 0, -(days - 1))
		if start.Before(from) {
			start = from
		}
		windows = append(windows, Window{Start: start, End: end})
		end = start.AddDate(0, 0, -1)
	}
	return windows
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
