package models

// Severity is the coarse bucket a metric value falls into.
type Severity string

const (
	SeverityLow  Severity = "low"
	SeverityOK   Severity = "ok"
	SeverityHigh Severity = "high"
)

// Status is the qualitative classification of a single metric value.
type Status struct {
	Text     string   `json:"text"`
	Color    string   `json:"color"`
	Severity Severity `json:"severity"`
}

// ReadingStatus groups the per-metric statuses of one reading.
type ReadingStatus struct {
	Temperature Status `json:"temperature"`
	Humidity    Status `json:"humidity"`
	CO2         Status `json:"co2"`
}
