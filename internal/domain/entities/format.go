package entities

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// Clamp bounds n to [min, max].
func Clamp(n, min, max float64) float64 {
	return math.Max(min, math.Min(max, n))
}

// FormatRemaining renders a remaining duration with its two most significant units.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "finished"
	}
	s := int64(d / time.Second)
	days := s / 86400
	hours := (s % 86400) / 3600
	minutes := (s % 3600) / 60
	seconds := s % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// IsValidEmail performs the basic local@domain.tld check used before any send.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}
