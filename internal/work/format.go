package work

import "fmt"

// FormatHHMM renders a minute total as hours:minutes, e.g. 125 -> "2:05".
func FormatHHMM(totalMinutes int) string {
	return fmt.Sprintf("%d:%02d", totalMinutes/60, totalMinutes%60)
}
