package main

import (
	"fmt"
	"time"
)

// now is swapped in tests.
var now = time.Now

// formatAge renders how long ago t was, at a coarse granularity.
func formatAge(t time.Time) string {
	d := now().Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
