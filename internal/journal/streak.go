package journal

import "time"

// streakLength counts consecutive calendar days starting at datesDesc[0].
// The dates must be unique and sorted newest first.
func streakLength(datesDesc []string) int {
	if len(datesDesc) == 0 {
		return 0
	}
	previous, err := time.Parse(dateLayout, datesDesc[0])
	if err != nil {
		return 0
	}
	streak := 1
	for _, raw := range datesDesc[1:] {
		current, err := time.Parse(dateLayout, raw)
		if err != nil {
			break
		}
		if !current.Equal(previous.AddDate(0, 0, -1)) {
			break
		}
		streak++
		previous = current
	}
	return streak
}
