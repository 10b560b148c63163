package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig is fixed at startup; there is no runtime reconfiguration.
type AppConfig struct {
	// OSC sink.
	OSCIP       string
	OSCPort     int
	LocalPort   int
	SendBuffer  int
	SendTimeout time.Duration

	// Sensor feed.
	Endpoint        string
	ControlEndpoint string
	SensorAPIURL    string
	SensorInterval  time.Duration
	IngestLogEvery  int

	// Status server.
	Port   int
	UIRate time.Duration

	// Debug / recording.
	Debug         bool
	DebugRate     float64
	Capture       bool
	OutputDir     string
	RawLogEnabled bool
	RawLogDir     string
}

// Defaults returns the baseline configuration: built-in values overlaid
// with an optional .env file and process environment. Flags override these
// in main.
func Defaults() AppConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: skipping .env: %v", err)
	}

	return AppConfig{
		OSCIP:           getEnv("OSC_IP", "127.0.0.1"),
		OSCPort:         getEnvInt("OSC_PORT", 57122),
		LocalPort:       getEnvInt("OSC_LOCAL_PORT", 0),
		SendBuffer:      getEnvInt("OSC_SEND_BUFFER", 0),
		SendTimeout:     getEnvDuration("OSC_SEND_TIMEOUT", 0),
		Endpoint:        getEnv("FEED_ENDPOINT", "tcp://localhost:31300"),
		ControlEndpoint: getEnv("FEED_CONTROL_ENDPOINT", ""),
		SensorAPIURL:    getEnv("SENSOR_API_URL", ""),
		SensorInterval:  getEnvDuration("SENSOR_API_INTERVAL", time.Second),
		IngestLogEvery:  getEnvInt("INGEST_LOG_EVERY", 100),
		Port:            getEnvInt("HTTP_PORT", 8890),
		UIRate:          getEnvDuration("UI_RATE", time.Second),
		Debug:           false,
		DebugRate:       30,
		Capture:         true,
		OutputDir:       getEnv("OUTPUT_DIR", "output"),
		RawLogEnabled:   false,
		RawLogDir:       getEnv("RAW_LOG_DIR", "rawlog"),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
