package service

import "time"

// LogFilter supports refresh log filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "START", "STOP", "REFRESH", "MISS"
}
