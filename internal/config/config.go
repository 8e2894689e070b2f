package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Meter modes.
const (
	MeterModbus    = "modbus"
	MeterSimulated = "simulated"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Meter    Meter    `yaml:"meter"`
	Minio    Minio    `yaml:"minio"`
	Station  Station  `yaml:"station"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Port         int      `yaml:"port"`
	ReadTimeout  string   `yaml:"read_timeout"`
	WriteTimeout string   `yaml:"write_timeout"`
	CORSOrigins  []string `yaml:"cors_origins"`
	RateLimit    struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

type Database struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type Meter struct {
	Mode          string `yaml:"mode"`
	Port          string `yaml:"port"`
	BaudRate      int    `yaml:"baud_rate"`
	EnergySlaveID byte   `yaml:"energy_slave_id"`
	RPMSlaveID    byte   `yaml:"rpm_slave_id"`
	PowerRegister uint16 `yaml:"power_register"`
	PFRegister    uint16 `yaml:"pf_register"`
	RPMRegister   uint16 `yaml:"rpm_register"`
	Timeout       string `yaml:"timeout"`
}

// Minio is optional; exports are archived only when Endpoint is set.
type Minio struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"useSSL"`
}

type Station struct {
	ServerURL      string `yaml:"server_url"`
	PrefsPath      string `yaml:"prefs_path"`
	RequestTimeout string `yaml:"request_timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load baca .env lalu file config.yaml. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config for a single bench station.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 5000
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Server.RateLimit.RPS = 20
	cfg.Server.RateLimit.Burst = 40
	cfg.Database.Driver = DriverSQLite
	cfg.Database.Path = "scan_log.db"
	cfg.Meter = Meter{
		Mode:          MeterModbus,
		Port:          "/dev/ttyUSB0",
		BaudRate:      9600,
		EnergySlaveID: 1,
		RPMSlaveID:    3,
		PowerRegister: 3051,
		PFRegister:    3055,
		RPMRegister:   0x03E9,
	}
	cfg.Station.ServerURL = "http://127.0.0.1:5000"
	cfg.Station.PrefsPath = "station_prefs.yaml"
	cfg.Log.Level = "info"
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DB_TYPE"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil && v > 0 {
		c.Server.Port = v
	}
	if v := os.Getenv("METER_MODE"); v != "" {
		c.Meter.Mode = v
	}
	if v := os.Getenv("METER_PORT"); v != "" {
		c.Meter.Port = v
	}
	if v := os.Getenv("STATION_SERVER_URL"); v != "" {
		c.Station.ServerURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects unknown drivers and meter modes.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Meter.Mode {
	case MeterModbus, MeterSimulated:
	default:
		return fmt.Errorf("unsupported meter mode %q", c.Meter.Mode)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// SQLitePath returns the database file, ":memory:" allowed.
func (d Database) SQLitePath() string {
	if d.Path == "" {
		return "scan_log.db"
	}
	return d.Path
}

// Helper untuk build DSN MySQL
func (d Database) MySQLDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (d Database) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// GetReadTimeout defaults to 15s.
func (s Server) GetReadTimeout() time.Duration {
	return parseDuration(s.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout covers the meter read inside POST /scan, so it is generous.
func (s Server) GetWriteTimeout() time.Duration {
	return parseDuration(s.WriteTimeout, 30*time.Second)
}

func (m Meter) GetTimeout() time.Duration {
	return parseDuration(m.Timeout, time.Second)
}

func (s Station) GetRequestTimeout() time.Duration {
	return parseDuration(s.RequestTimeout, 10*time.Second)
}

// Enabled reports whether exports should be archived.
func (m Minio) Enabled() bool { return m.Endpoint != "" }

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
