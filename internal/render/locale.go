package render

import (
	"strings"
	"time"
)

type locale struct {
	Loading     string
	LoadFailed  string
	LastUpdate  string
	Temperature string
	Humidity    string
	CO2         string
	Description string
	Annotation  string
	months      [12]string
	statuses    map[string]string
}

var locales = map[string]locale{
	"es": {
		Loading:     "Cargando...",
		LoadFailed:  "Error al cargar datos",
		LastUpdate:  "Última actualización",
		Temperature: "Temperatura",
		Humidity:    "Humedad",
		CO2:         "Calidad del Aire (CO₂)",
		months:      [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
		statuses: map[string]string{
			"Cold":      "Frío",
			"Hot":       "Caliente",
			"Optimal":   "Óptimo",
			"Dry":       "Seco",
			"Humid":     "Húmedo",
			"Excellent": "Excelente",
			"Good":      "Bueno",
			"Attention": "Atención",
		},
	},
	"en": {
		Loading:     "Loading...",
		LoadFailed:  "Failed to load data",
		LastUpdate:  "Last update",
		Temperature: "Temperature",
		Humidity:    "Humidity",
		CO2:         "Air quality (CO₂)",
		months:      [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	},
}

func lookupLocale(lang string) locale {
	if l, ok := locales[strings.ToLower(lang)]; ok {
		return l
	}
	return locales["es"]
}

// status translates a classifier text; unknown texts pass through.
func (l locale) status(text string) string {
	if s, ok := l.statuses[text]; ok {
		return s
	}
	return text
}

// formatTime renders t as "02 Jan 2006, 15:04:05" with a localised month.
func (l locale) formatTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02 ") + l.months[t.Month()-1] + t.Format(" 2006, 15:04:05")
}
