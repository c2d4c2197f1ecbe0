package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	PostgresAddress  string
	PostgresPort     string
	PostgresDB       string
	PostgresUsername string
	PostgresPassword string

	StorageDriver string
	HTTPPort      string
	LogLevel      string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	OperatorWorkers int

	OutboxRelayInterval time.Duration
	OutboxRelayGrace    time.Duration
	OutboxRetention     time.Duration

	SchedulerEnabled     bool
	SchedulerInterval    time.Duration
	SchedulerTickTimeout time.Duration
	SchedulerClaimLease  time.Duration
	SchedulerPageSize    int
	SchedulerWorkers     int
	SchedulerInstanceID  string
}

// PostgresConnectionString builds the lib/pq URL for the configured database.
func (c *Config) PostgresConnectionString() string {
	return "postgres://" + c.PostgresUsername + ":" +
		c.PostgresPassword + "@" + c.PostgresAddress + ":" +
		c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

func ProcessEnvironmentVariables() (*Config, error) {
	// A missing .env file is fine, the environment still applies.
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	// In all cases the default behavior should be for the docker compose setup
	env := Config{
		PostgresAddress:  "localhost",
		PostgresPort:     "5433",
		PostgresDB:       "postgres",
		PostgresUsername: "postgres",
		PostgresPassword: "testpassword",

		StorageDriver: StorageDriverPostgres,
		HTTPPort:      "9446",
		LogLevel:      "info",

		OperatorWorkers: 4,

		OutboxRelayInterval: 10 * time.Second,
		OutboxRelayGrace:    5 * time.Second,
		OutboxRetention:     24 * time.Hour,

		SchedulerEnabled:     true,
		SchedulerInterval:    time.Hour,
		SchedulerTickTimeout: 5 * time.Minute,
		SchedulerClaimLease:  10 * time.Minute,
		SchedulerPageSize:    100,
		SchedulerWorkers:     4,
		SchedulerInstanceID:  hostname,
	}

	setString(&env.PostgresAddress, "POSTGRES_ADDRESS")
	setString(&env.PostgresPort, "POSTGRES_PORT")
	setString(&env.PostgresDB, "POSTGRES_DB")
	setString(&env.PostgresUsername, "POSTGRES_USERNAME")
	setString(&env.PostgresPassword, "POSTGRES_PASSWORD")
	setString(&env.StorageDriver, "STORAGE_DRIVER")
	setString(&env.HTTPPort, "HTTP_PORT")
	setString(&env.LogLevel, "LOG_LEVEL")
	setString(&env.RedisAddress, "REDIS_ADDRESS")
	setString(&env.RedisPassword, "REDIS_PASSWORD")
	setString(&env.SchedulerInstanceID, "SCHEDULER_INSTANCE_ID")

	if err := setInt(&env.RedisDB, "REDIS_DB"); err != nil {
		return nil, err
	}
	if err := setInt(&env.OperatorWorkers, "OPERATOR_WORKERS"); err != nil {
		return nil, err
	}
	if err := setInt(&env.SchedulerPageSize, "SCHEDULER_PAGE_SIZE"); err != nil {
		return nil, err
	}
	if err := setInt(&env.SchedulerWorkers, "SCHEDULER_WORKERS"); err != nil {
		return nil, err
	}
	if err := setBool(&env.SchedulerEnabled, "SCHEDULER_ENABLED"); err != nil {
		return nil, err
	}
	if err := setDuration(&env.SchedulerInterval, "SCHEDULER_INTERVAL"); err != nil {
		return nil, err
	}
	if err := setDuration(&env.SchedulerTickTimeout, "SCHEDULER_TICK_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := setDuration(&env.SchedulerClaimLease, "SCHEDULER_CLAIM_LEASE"); err != nil {
		return nil, err
	}
	if err := setDuration(&env.OutboxRelayInterval, "OUTBOX_RELAY_INTERVAL"); err != nil {
		return nil, err
	}
	if err := setDuration(&env.OutboxRelayGrace, "OUTBOX_RELAY_GRACE"); err != nil {
		return nil, err
	}
	if err := setDuration(&env.OutboxRetention, "OUTBOX_RETENTION"); err != nil {
		return nil, err
	}

	if env.StorageDriver != StorageDriverPostgres && env.StorageDriver != StorageDriverMemory {
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, env.StorageDriver)
	}

	return &env, nil
}

func setString(target *string, key string) {
	if value := os.Getenv(key); len(value) != 0 {
		*target = value
	}
}

func setInt(target *int, key string) error {
	value := os.Getenv(key)
	if len(value) == 0 {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func setBool(target *bool, key string) error {
	value := os.Getenv(key)
	if len(value) == 0 {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func setDuration(target *time.Duration, key string) error {
	value := os.Getenv(key)
	if len(value) == 0 {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}
