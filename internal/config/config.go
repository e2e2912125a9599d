package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SlackModeSocket = "socket"
	SlackModeHTTP   = "http"
)

// MaxReplicaCeiling bounds kubernetes.maxReplicas; config may narrow it, never raise it.
const MaxReplicaCeiling = 10

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Cache      CacheConfig      `yaml:"cache"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Slack      SlackConfig      `yaml:"slack"`
	Access     AccessConfig     `yaml:"access"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MetricsPort     int           `yaml:"metricsPort"`
}

type KubernetesConfig struct {
	InCluster         bool          `yaml:"inCluster"`
	Kubeconfig        string        `yaml:"kubeconfig"`
	Namespaces        []string      `yaml:"namespaces"`
	BlockedNamespaces []string      `yaml:"blockedNamespaces"`
	ExecTimeout       time.Duration `yaml:"execTimeout"`
	Exec              ExecConfig    `yaml:"exec"`
	MaxOutputLines    int           `yaml:"maxOutputLines"`
	MaxOutputChars    int           `yaml:"maxOutputChars"`
	MinReplicas       int32         `yaml:"minReplicas"`
	MaxReplicas       int32         `yaml:"maxReplicas"`
	EventLimit        int           `yaml:"eventLimit"`
}

type ExecConfig struct {
	AllowedBinaries []string `yaml:"allowedBinaries"`
	DeniedPrefixes  []string `yaml:"deniedPrefixes"`
	AllowShell      bool     `yaml:"allowShell"`
}

type CacheConfig struct {
	RefreshInterval time.Duration `yaml:"refreshInterval"`
	PodLimit        int           `yaml:"podLimit"`
	DeploymentLimit int           `yaml:"deploymentLimit"`
	// MaxAge is how stale the cache may get before /readyz fails.
	MaxAge time.Duration `yaml:"maxAge"`
}

type DispatchConfig struct {
	Workers      int     `yaml:"workers"`
	QueueSize    int     `yaml:"queueSize"`
	PerUserRate  float64 `yaml:"perUserRate"`
	PerUserBurst int     `yaml:"perUserBurst"`
}

type SlackConfig struct {
	Mode                string          `yaml:"mode"`
	BotToken            string          `yaml:"botToken"`
	AppToken            string          `yaml:"appToken"`
	SigningSecret       string          `yaml:"signingSecret"`
	AuditChannel        string          `yaml:"auditChannel"`
	FileUploadThreshold int             `yaml:"fileUploadThreshold"`
	UserCacheTTL        time.Duration   `yaml:"userCacheTTL"`
	HTTP                SlackHTTPConfig `yaml:"http"`
}

type SlackHTTPConfig struct {
	RateLimit    int   `yaml:"rateLimit"`
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

type AccessConfig struct {
	AllowedUsers []string `yaml:"allowedUsers"`
	AdminUsers   []string `yaml:"adminUsers"`
}

type DatabaseConfig struct {
	Driver string       `yaml:"driver"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"maxOpenConns"`
	PragmaJournalMode string `yaml:"pragmaJournalMode"`
	PragmaBusyTimeout int    `yaml:"pragmaBusyTimeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads a YAML config file, overlays it on DefaultConfig and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Read is Load without validation, for offline tooling that needs no credentials.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Decode(data)
}

// Decode expands ${VAR} references in data and overlays it on DefaultConfig.
func Decode(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MetricsPort:     9090,
		},
		Kubernetes: KubernetesConfig{
			InCluster:         true,
			Namespaces:        []string{"default"},
			BlockedNamespaces: []string{"kube-system", "kube-public", "kube-node-lease"},
			ExecTimeout:       30 * time.Second,
			Exec: ExecConfig{
				AllowedBinaries: []string{
					"ls", "cat", "head", "tail", "grep", "wc", "find", "stat",
					"df", "du", "free", "ps", "top", "uptime", "date", "hostname",
					"whoami", "id", "netstat", "ss", "nslookup", "dig", "ping",
					"echo", "sort", "uniq",
				},
				DeniedPrefixes: []string{
					"psql", "mysql", "mongo", "mongosh", "redis-cli",
					"curl", "wget", "ssh", "scp", "nc", "ncat", "telnet",
				},
			},
			MaxOutputLines: 200,
			MaxOutputChars: 3000,
			MinReplicas:    1,
			MaxReplicas:    10,
			EventLimit:     3,
		},
		Cache: CacheConfig{
			RefreshInterval: 15 * time.Second,
			PodLimit:        20,
			DeploymentLimit: 10,
			MaxAge:          5 * time.Minute,
		},
		Dispatch: DispatchConfig{
			Workers:      4,
			QueueSize:    64,
			PerUserRate:  0.5,
			PerUserBurst: 3,
		},
		Slack: SlackConfig{
			Mode:                SlackModeSocket,
			FileUploadThreshold: 3500,
			UserCacheTTL:        time.Hour,
			HTTP: SlackHTTPConfig{
				RateLimit:    120,
				MaxBodyBytes: 100 << 10,
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:              "/data/jarvis.db",
				MaxOpenConns:      1,
				PragmaJournalMode: "wal",
				PragmaBusyTimeout: 5000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

// IsBlocked reports whether ns is in the blocked namespace list.
func (c *KubernetesConfig) IsBlocked(ns string) bool {
	for _, b := range c.BlockedNamespaces {
		if b == ns {
			return true
		}
	}
	return false
}
