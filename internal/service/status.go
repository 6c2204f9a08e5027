package service

import "sensor_overlay/internal/models"

// Threshold colours shared with the panel stylesheet.
const (
	colorBlue  = "#3b82f6"
	colorRed   = "#ef4444"
	colorGreen = "#10b981"
	colorAmber = "#f59e0b"
)

// Comfort thresholds. Values equal to a bound fall into the milder branch.
const (
	TempColdBelowC     = 18.0
	TempHotAboveC      = 26.0
	HumidityDryBelow   = 30.0
	HumidityHumidAbove = 60.0
	CO2ExcellentBelow  = 600.0
	CO2GoodBelow       = 1000.0
)

// TemperatureStatus classifies a temperature in °C.
func TemperatureStatus(c float64) models.Status {
	switch {
	case c < TempColdBelowC:
		return models.Status{Text: "Cold", Color: colorBlue, Severity: models.SeverityLow}
	case c > TempHotAboveC:
		return models.Status{Text: "Hot", Color: colorRed, Severity: models.SeverityHigh}
	default:
		return models.Status{Text: "Optimal", Color: colorGreen, Severity: models.SeverityOK}
	}
}

// HumidityStatus classifies a relative humidity in %.
func HumidityStatus(pct float64) models.Status {
	switch {
	case pct < HumidityDryBelow:
		return models.Status{Text: "Dry", Color: colorAmber, Severity: models.SeverityLow}
	case pct > HumidityHumidAbove:
		return models.Status{Text: "Humid", Color: colorBlue, Severity: models.SeverityHigh}
	default:
		return models.Status{Text: "Optimal", Color: colorGreen, Severity: models.SeverityOK}
	}
}

// CO2Status classifies a CO2 concentration in ppm.
func CO2Status(ppm float64) models.Status {
	switch {
	case ppm < CO2ExcellentBelow:
		return models.Status{Text: "Excellent", Color: colorGreen, Severity: models.SeverityLow}
	case ppm < CO2GoodBelow:
		return models.Status{Text: "Good", Color: colorAmber, Severity: models.SeverityOK}
	default:
		return models.Status{Text: "Attention", Color: colorRed, Severity: models.SeverityHigh}
	}
}

// Classify returns the statuses of every metric of r.
func Classify(r models.Reading) models.ReadingStatus {
	return models.ReadingStatus{
		Temperature: TemperatureStatus(r.Temperature),
		Humidity:    HumidityStatus(r.Humidity),
		CO2:         CO2Status(r.CO2),
	}
}
