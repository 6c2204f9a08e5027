package models

import "time"

// Reading is one normalized sensor sample.
type Reading struct {
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // %
	CO2         float64   `json:"co2"`         // ppm
	Timestamp   time.Time `json:"timestamp"`
}
