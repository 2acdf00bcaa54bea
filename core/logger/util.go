package logger

import "time"

// Status maps an error to the status field value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Took returns the elapsed time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to the nearest millisecond.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}
