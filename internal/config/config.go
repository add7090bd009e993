package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file named by COLLECTIVE_ENV (.env by default) and its
// .secret sidecar when present. All config is flat env vars read after loading.
func Load() error {
	envFile := os.Getenv("COLLECTIVE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// missing files are fine, the environment may already be populated
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

func RateLimitBurst() int {
	return positiveInt("RATE_LIMIT_BURST", 20)
}

// PersistenceBackend is one of memory, postgres or badger.
func PersistenceBackend() string {
	b := strings.ToLower(os.Getenv("PERSISTENCE_BACKEND"))
	switch b {
	case "postgres", "badger":
		return b
	default:
		return "memory"
	}
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func BadgerPath() string {
	p := os.Getenv("BADGER_PATH")
	if p == "" {
		return "data/badger"
	}
	return p
}

// BadgerGCInterval is how often the badger value log is garbage collected.
func BadgerGCInterval() time.Duration {
	return duration("BADGER_GC_INTERVAL", 10*time.Minute)
}

// DegradedMode keeps ingestion running in memory when the repository fails.
// Defaults to true.
func DegradedMode() bool {
	return boolEnv("DEGRADED_MODE", true)
}

func ReplayOnStart() bool {
	return boolEnv("REPLAY_ON_START", true)
}

func MeshSendQueueSize() int {
	return positiveInt("MESH_SEND_QUEUE_SIZE", 64)
}

func MeshWriteTimeout() time.Duration {
	return duration("MESH_WRITE_TIMEOUT", 10*time.Second)
}

func MeshPingInterval() time.Duration {
	return duration("MESH_PING_INTERVAL", 30*time.Second)
}

func SelfImprovementInterval() time.Duration {
	return duration("SELF_IMPROVEMENT_INTERVAL", time.Hour)
}

func PatternRetentionPerSituation() int {
	return positiveInt("PATTERN_RETENTION_PER_SITUATION", 500)
}

// CustomerHistoryLimit bounds the interactions kept per customer profile.
func CustomerHistoryLimit() int {
	return positiveInt("CUSTOMER_HISTORY_LIMIT", 200)
}

func ProactiveInterval() time.Duration {
	return duration("PROACTIVE_INTERVAL", 15*time.Minute)
}

// ActionConfigPath points to a YAML file of proactive-action rules.
// Empty means the built-in defaults.
func ActionConfigPath() string {
	return os.Getenv("ACTION_CONFIG_PATH")
}

// OperationsBackend is memory or influx.
func OperationsBackend() string {
	if strings.EqualFold(os.Getenv("OPERATIONS_BACKEND"), "influx") {
		return "influx"
	}
	return "memory"
}

func InfluxURL() string {
	return os.Getenv("INFLUXDB_URL")
}

func InfluxToken() string {
	return os.Getenv("INFLUXDB_TOKEN")
}

func InfluxOrg() string {
	return os.Getenv("INFLUXDB_ORG")
}

func InfluxBucket() string {
	b := os.Getenv("INFLUXDB_BUCKET")
	if b == "" {
		return "operations"
	}
	return b
}

func positiveInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func boolEnv(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}
