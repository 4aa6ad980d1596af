package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	Redis     Redis     `yaml:"redis"`
	Memcached Memcached `yaml:"memcached"`
	Auth      Auth      `yaml:"auth"`
	Transfer  Transfer  `yaml:"transfer"`
	Portal    Portal    `yaml:"portal"`
}

type Server struct {
	Listen            string `yaml:"listen"`
	RequireOwnerScope bool   `yaml:"requireOwnerScope"`
	EnableTrace       bool   `yaml:"enableTrace"`
	TraceEndpoint     string `yaml:"traceEndpoint"`
}

// Store selects the registry backend. Type decides which of the other fields are read.
type Store struct {
	Type      string `yaml:"type"` // file, memory, postgres, sqlite, s3
	UniqueIDs bool   `yaml:"uniqueIds"`

	// file
	Path string `yaml:"path,omitempty"`

	// postgres
	PostgresDsn string `yaml:"postgresDsn,omitempty"`

	// sqlite
	SQLitePath string `yaml:"sqlitePath,omitempty"`

	// s3
	S3Bucket    string `yaml:"s3Bucket,omitempty"`
	S3Key       string `yaml:"s3Key,omitempty"`
	S3Region    string `yaml:"s3Region,omitempty"`
	S3Endpoint  string `yaml:"s3Endpoint,omitempty"`
	S3AccessKey string `yaml:"s3AccessKey,omitempty"`
	S3SecretKey string `yaml:"s3SecretKey,omitempty"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type Memcached struct {
	Addr string `yaml:"addr"`
}

type Auth struct {
	UserinfoURL string `yaml:"userinfoURL"`
	Token       string `yaml:"token"`
}

type Transfer struct {
	BaseURL        string `yaml:"baseURL"`
	SearchLimit    int    `yaml:"searchLimit"`
	ThrottleMs     int    `yaml:"throttleMs"`
	CacheType      string `yaml:"cacheType"` // none, memory, memcached
	CacheTTLSecond int    `yaml:"cacheTTLSecond"`
}

type Portal struct {
	Source      string `yaml:"source"` // service, fixture
	RegistryURL string `yaml:"registryURL"`
	FixturePath string `yaml:"fixturePath"`
	Mode        string `yaml:"mode"` // manage, search
	Validation  string `yaml:"validation"` // none, strict
}

func Defaults() Config {
	return Config{
		Server: Server{
			Listen: ":3001",
		},
		Store: Store{
			Type: "file",
			Path: "mockdb.json",
		},
		Redis: Redis{
			Channel: "diamond.registry",
		},
		Transfer: Transfer{
			BaseURL:        "https://transfer.api.globus.org/v0.10",
			SearchLimit:    20,
			ThrottleMs:     500,
			CacheType:      "memory",
			CacheTTLSecond: 30,
		},
		Portal: Portal{
			Source:      "service",
			RegistryURL: "http://localhost:3001",
			Mode:        "manage",
			Validation:  "none",
		},
	}
}

// Load reads a YAML file on top of Defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	config := Defaults()
	if path == "" {
		return config, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) Validate() error {
	switch c.Store.Type {
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("file store requires path to be set")
		}
	case "memory":
	case "postgres":
		if c.Store.PostgresDsn == "" {
			return fmt.Errorf("postgres store requires postgresDsn to be set")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite store requires sqlitePath to be set")
		}
	case "s3":
		if c.Store.S3Bucket == "" || c.Store.S3Key == "" {
			return fmt.Errorf("s3 store requires s3Bucket and s3Key to be set")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}

	switch c.Portal.Source {
	case "service":
	case "fixture":
		if c.Portal.FixturePath == "" {
			return fmt.Errorf("fixture source requires fixturePath to be set")
		}
	default:
		return fmt.Errorf("unknown portal source: %s", c.Portal.Source)
	}

	switch c.Portal.Mode {
	case "manage", "search":
	default:
		return fmt.Errorf("unknown portal mode: %s", c.Portal.Mode)
	}

	switch c.Transfer.CacheType {
	case "", "none", "memory":
	case "memcached":
		if c.Memcached.Addr == "" {
			return fmt.Errorf("memcached search cache requires memcached.addr to be set")
		}
	default:
		return fmt.Errorf("unknown search cache type: %s", c.Transfer.CacheType)
	}

	return nil
}

func (t Transfer) Throttle() time.Duration {
	return time.Duration(t.ThrottleMs) * time.Millisecond
}

func (t Transfer) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSecond) * time.Second
}
