package core

import "fmt"

// FormatBytes renders a byte count with binary units, e.g. "512 B",
// "1.50 KB", "20.00 MB". Negative counts render as "0 B".
func FormatBytes(n int64) string {
	if n < 1024 {
		if n < 0 {
			n = 0
		}
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	for _, unit := range []string{"KB", "MB", "GB"} {
		value /= 1024
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
	}
	return fmt.Sprintf("%.2f TB", value/1024)
}
