// Package config carga la topología deseada desde YAML y resuelve las
// credenciales por cluster una sola vez al startup. Una credencial o un
// host irresoluble es un error estructural de configuración, no un
// fallback silencioso.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// ErrConfiguration marca errores de configuración; los callers chequean
// con errors.Is.
var ErrConfiguration = errors.New("configuration error")

// DefaultRepSet el único replication set que maneja este reconciler.
const DefaultRepSet = "default"

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Database nombre de la base target en todos los clusters.
	Database string `yaml:"database"`

	// Tables tablas a replicar; la primera es la reference table de la
	// sync policy.
	Tables []string `yaml:"tables"`

	Clusters []ClusterSpec `yaml:"clusters"`

	// Credentials mapa explícito ref → credencial. Los valores aceptan
	// literal o indirection "env:VARNAME".
	Credentials map[string]CredentialSpec `yaml:"credentials"`

	Readiness struct {
		Interval time.Duration `yaml:"interval"`
		// Timeout 0 = esperar indefinidamente al primario.
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"readiness"`

	Daemon struct {
		Interval time.Duration `yaml:"interval"`
		Addr     string        `yaml:"addr"`
	} `yaml:"daemon"`

	Lock struct {
		Enabled   bool          `yaml:"enabled"`
		RedisAddr string        `yaml:"redis_addr"`
		RedisDB   int           `yaml:"redis_db"`
		Key       string        `yaml:"key"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"lock"`

	Report struct {
		// Path archivo JSON donde persistir el último run report.
		// Vacío = no persistir.
		Path string `yaml:"path"`
	} `yaml:"report"`
}

type ClusterSpec struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Credential referencia a una entrada del mapa credentials.
	Credential string `yaml:"credential"`
}

type CredentialSpec struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Load lee y valida la configuración. Sin side effects más allá de
// lecturas de archivo y de environment.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "meshdb"
	}
	if c.Readiness.Interval <= 0 {
		c.Readiness.Interval = 2 * time.Second
	}
	if c.Daemon.Interval <= 0 {
		c.Daemon.Interval = 60 * time.Second
	}
	if c.Daemon.Addr == "" {
		c.Daemon.Addr = ":8080"
	}
	if c.Lock.Key == "" {
		c.Lock.Key = "pgmesh:runlock"
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	if len(c.Clusters) == 0 {
		return fmt.Errorf("%w: no clusters configured", ErrConfiguration)
	}
	seen := map[string]bool{}
	for _, cs := range c.Clusters {
		if strings.TrimSpace(cs.Name) == "" {
			return fmt.Errorf("%w: cluster with empty name", ErrConfiguration)
		}
		if strings.TrimSpace(cs.Host) == "" {
			return fmt.Errorf("%w: cluster %q has no host", ErrConfiguration, cs.Name)
		}
		norm := topology.NormalizeName(cs.Name)
		if norm == "" {
			return fmt.Errorf("%w: cluster %q normalizes to empty node name", ErrConfiguration, cs.Name)
		}
		if seen[norm] {
			return fmt.Errorf("%w: clusters collide on node name %q", ErrConfiguration, norm)
		}
		seen[norm] = true
		if _, ok := c.Credentials[cs.Credential]; !ok {
			return fmt.Errorf("%w: cluster %q references unknown credential %q", ErrConfiguration, cs.Name, cs.Credential)
		}
	}
	if c.Lock.Enabled && c.Lock.RedisAddr == "" {
		return fmt.Errorf("%w: lock enabled but redis_addr empty", ErrConfiguration)
	}
	return nil
}

// ResolveClusters materializa el OrderedSet de clusters con credenciales
// ya resueltas. Falla si alguna indirection env: apunta a una variable
// no seteada.
func (c *Config) ResolveClusters() ([]topology.Cluster, error) {
	out := make([]topology.Cluster, 0, len(c.Clusters))
	for _, cs := range c.Clusters {
		spec := c.Credentials[cs.Credential]
		user, err := resolveValue(spec.User)
		if err != nil {
			return nil, fmt.Errorf("%w: credential %q user: %v", ErrConfiguration, cs.Credential, err)
		}
		if user == "" {
			return nil, fmt.Errorf("%w: credential %q has empty user", ErrConfiguration, cs.Credential)
		}
		pass, err := resolveValue(spec.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: credential %q password: %v", ErrConfiguration, cs.Credential, err)
		}
		out = append(out, topology.Cluster{
			Name:     cs.Name,
			Host:     cs.Host,
			Port:     cs.Port,
			Database: c.Database,
			Cred:     topology.Credential{User: user, Password: pass},
		})
	}
	return out, nil
}

// resolveValue resuelve "env:VAR" contra el environment; cualquier otro
// valor es literal.
func resolveValue(v string) (string, error) {
	if !strings.HasPrefix(v, "env:") {
		return v, nil
	}
	name := strings.TrimPrefix(v, "env:")
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("env variable %s not set", name)
	}
	return val, nil
}

// ReferenceTable primera tabla deseada; "" si no hay tablas.
func (c *Config) ReferenceTable() string {
	if len(c.Tables) == 0 {
		return ""
	}
	return c.Tables[0]
}
