package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	// display.timezone must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. OVERLAY_SENSOR_API_URL.
const envPrefix = "OVERLAY"

// Config is the typed view over config.yml and its environment overrides.
type Config struct {
	Port     string
	LogLevel string

	DB      DBConfig
	Sensor  SensorConfig
	Display DisplayConfig
	Viewer  ViewerConfig
	Auth    AuthConfig
}

type DBConfig struct {
	Path string
}

type SensorConfig struct {
	APIURL          string
	Timeout         time.Duration
	RefreshInterval time.Duration
	BreakerFailures uint32
	BreakerOpen     time.Duration
}

type DisplayConfig struct {
	Language    string
	Location    *time.Location
	LabelOffset float64
	LabelFlash  time.Duration
	PanelDip    time.Duration
}

type ViewerConfig struct {
	PotreeBase      string
	AssetsDir       string
	PointCloudURL   string
	PointCloudName  string
	Description     string
	PointBudget     int
	FOV             float64
	EDL             bool
	Background      string
	PointSize       float64
	PointSizeType   string
	PointShape      string
	Anchor          [3]float64
	CameraPosition  [3]float64
	AnnotationTitle string
	LoadTimeout     time.Duration
}

type AuthConfig struct {
	Secret               string
	OperatorPasswordHash string
	TokenTTL             time.Duration
}

var (
	errEmptyAPIURL  = errors.New("sensor.api_url must not be empty")
	errBadInterval  = errors.New("sensor.refresh_interval must be > 0")
	errBadTimeout   = errors.New("sensor.timeout must be > 0")
	errBadLanguage  = errors.New("display.language must be one of: es, en")
	errBadTokenTTL  = errors.New("auth.token_ttl must be > 0")
	errBadVectorLen = errors.New("expected a list of 3 numbers")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("db.path", "app.db")

	v.SetDefault("sensor.api_url", "https://q4gue6nm69.execute-api.us-east-1.amazonaws.com/default/getDatosSensores")
	v.SetDefault("sensor.timeout", "10s")
	v.SetDefault("sensor.refresh_interval", "30s")
	v.SetDefault("sensor.breaker.max_failures", 5)
	v.SetDefault("sensor.breaker.open_timeout", "60s")

	v.SetDefault("display.language", "es")
	v.SetDefault("display.timezone", "Local")
	v.SetDefault("display.label_offset_px", 35)
	v.SetDefault("display.label_flash", "500ms")
	v.SetDefault("display.panel_dip", "150ms")

	v.SetDefault("viewer.potree_base", "/libs/potree")
	v.SetDefault("viewer.assets_dir", "")
	v.SetDefault("viewer.pointcloud_url", "../pointclouds/mi_espacio_3d/metadata.json")
	v.SetDefault("viewer.pointcloud_name", "Mi Espacio 3D")
	v.SetDefault("viewer.description", "Monitoreo Ambiental IoT")
	v.SetDefault("viewer.point_budget", 1_500_000)
	v.SetDefault("viewer.fov", 60)
	v.SetDefault("viewer.edl", true)
	v.SetDefault("viewer.background", "gradient")
	v.SetDefault("viewer.point_size", 1.2)
	v.SetDefault("viewer.point_size_type", "ADAPTIVE")
	v.SetDefault("viewer.point_shape", "CIRCLE")
	v.SetDefault("viewer.anchor", []float64{-3.65, 1.07, -5.61})
	v.SetDefault("viewer.camera_position", []float64{-2.5, 2.0, -4.5})
	v.SetDefault("viewer.annotation_title", "🌡️ Estación de Sensores IoT")
	v.SetDefault("viewer.load_timeout", "60s")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.operator_password_hash", "")
	v.SetDefault("auth.token_ttl", "12h")
}

// Load reads configs/config.yml (or the file at path when non-empty) and
// applies OVERLAY_* environment overrides. A missing config file is not an
// error; defaults apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:     v.GetString("port"),
		LogLevel: strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		DB:       DBConfig{Path: v.GetString("db.path")},
		Sensor: SensorConfig{
			APIURL:          strings.TrimSpace(v.GetString("sensor.api_url")),
			Timeout:         v.GetDuration("sensor.timeout"),
			RefreshInterval: v.GetDuration("sensor.refresh_interval"),
			BreakerFailures: v.GetUint32("sensor.breaker.max_failures"),
			BreakerOpen:     v.GetDuration("sensor.breaker.open_timeout"),
		},
		Display: DisplayConfig{
			Language:    strings.ToLower(strings.TrimSpace(v.GetString("display.language"))),
			LabelOffset: v.GetFloat64("display.label_offset_px"),
			LabelFlash:  v.GetDuration("display.label_flash"),
			PanelDip:    v.GetDuration("display.panel_dip"),
		},
		Viewer: ViewerConfig{
			PotreeBase:      strings.TrimRight(v.GetString("viewer.potree_base"), "/"),
			AssetsDir:       v.GetString("viewer.assets_dir"),
			PointCloudURL:   v.GetString("viewer.pointcloud_url"),
			PointCloudName:  v.GetString("viewer.pointcloud_name"),
			Description:     v.GetString("viewer.description"),
			PointBudget:     v.GetInt("viewer.point_budget"),
			FOV:             v.GetFloat64("viewer.fov"),
			EDL:             v.GetBool("viewer.edl"),
			Background:      v.GetString("viewer.background"),
			PointSize:       v.GetFloat64("viewer.point_size"),
			PointSizeType:   strings.ToUpper(v.GetString("viewer.point_size_type")),
			PointShape:      strings.ToUpper(v.GetString("viewer.point_shape")),
			AnnotationTitle: v.GetString("viewer.annotation_title"),
			LoadTimeout:     v.GetDuration("viewer.load_timeout"),
		},
		Auth: AuthConfig{
			Secret:               v.GetString("auth.secret"),
			OperatorPasswordHash: v.GetString("auth.operator_password_hash"),
			TokenTTL:             v.GetDuration("auth.token_ttl"),
		},
	}

	var err error
	if cfg.Viewer.Anchor, err = vec3(v, "viewer.anchor"); err != nil {
		return Config{}, err
	}
	if cfg.Viewer.CameraPosition, err = vec3(v, "viewer.camera_position"); err != nil {
		return Config{}, err
	}

	tz := strings.TrimSpace(v.GetString("display.timezone"))
	if cfg.Display.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("display.timezone %q: %w", tz, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Sensor.APIURL == "" {
		return errEmptyAPIURL
	}
	if c.Sensor.RefreshInterval <= 0 {
		return errBadInterval
	}
	if c.Sensor.Timeout <= 0 {
		return errBadTimeout
	}
	switch c.Display.Language {
	case "es", "en":
	default:
		return errBadLanguage
	}
	if c.Auth.TokenTTL <= 0 {
		return errBadTokenTTL
	}
	return nil
}

// vec3 reads a 3-element numeric list. Env overrides arrive as a
// space separated string ("-3.65 1.07 -5.61").
func vec3(v *viper.Viper, key string) ([3]float64, error) {
	var out [3]float64
	raw := v.Get(key)
	var items []float64
	switch t := raw.(type) {
	case []float64:
		items = t
	case []any:
		for _, it := range t {
			f, err := toFloat(it)
			if err != nil {
				return out, fmt.Errorf("%s: %w", key, err)
			}
			items = append(items, f)
		}
	case string:
		for _, f := range strings.Fields(strings.ReplaceAll(t, ",", " ")) {
			var x float64
			if _, err := fmt.Sscan(f, &x); err != nil {
				return out, fmt.Errorf("%s: %w", key, err)
			}
			items = append(items, x)
		}
	default:
		return out, fmt.Errorf("%s: %w", key, errBadVectorLen)
	}
	if len(items) != 3 {
		return out, fmt.Errorf("%s: %w", key, errBadVectorLen)
	}
	copy(out[:], items)
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
