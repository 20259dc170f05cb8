package ingest

import (
	"fmt"
	"time"

	"github.com/tradepop/datalake/internal/models"
)

const dateLayout = "2006-01-02"

// parseDate parses an ISO calendar date.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// partitionWindows splits the closed interval [start, end] into
// contiguous, non-overlapping windows of at most days calendar days.
// The last window may be shorter. The windows cover the range exactly.
func partitionWindows(start, end string, days int) ([]models.Window, error) {
	startDate, err := parseDate(start)
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate(end)
	if err != nil {
		return nil, err
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start %s is after end %s", start, end)
	}
	if days < 1 {
		return nil, fmt.Errorf("window days must be >= 1, got %d", days)
	}

	var windows []models.Window
	for cur := startDate; !cur.After(endDate); {
		windowEnd := cur.AddDate(0, 0, days-1)
		if windowEnd.After(endDate) {
			windowEnd = endDate
		}
		windows = append(windows, models.Window{
			Start: cur.Format(dateLayout),
			End:   windowEnd.Format(dateLayout),
		})
		cur = windowEnd.AddDate(0, 0, 1)
	}
	return windows, nil
}
