package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkerConfig configuração centralizada do worker
type WorkerConfig struct {
	// Identificação
	WorkerName  string `yaml:"worker_name" json:"worker_name"`
	MaxWorkLoad uint32 `yaml:"max_work_load" json:"max_work_load"`

	// Distribuidor (host:port). Vazio abre o shell interativo.
	ServerAddr string `yaml:"server_addr" json:"server_addr"`

	// Timeouts (0 = sem limite)
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	IOTimeout   time.Duration `yaml:"io_timeout" json:"io_timeout"`

	// Limite de total_len de um frame recebido, em bytes (0 = sem limite)
	MaxFrameSize uint32 `yaml:"max_frame_size" json:"max_frame_size"`

	// Porta HTTP de status (0 = desabilitado)
	StatusPort int `yaml:"status_port" json:"status_port"`

	Fleet FleetConfig `yaml:"fleet" json:"fleet"`
}

// FleetConfig configuração do membership SWIM entre workers
type FleetConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	BindAddr string   `yaml:"bind_addr" json:"bind_addr"`
	BindPort int      `yaml:"bind_port" json:"bind_port"`
	Seeds    []string `yaml:"seeds" json:"seeds"`
}

// DefaultMaxFrameSize limita frames recebidos a 64 MiB
const DefaultMaxFrameSize uint32 = 64 << 20

// DefaultConfig retorna configuração padrão
func DefaultConfig() *WorkerConfig {
	return &WorkerConfig{
		WorkerName:   "worker",
		MaxWorkLoad:  1000,
		DialTimeout:  5 * time.Second,
		IOTimeout:    0, // o distribuidor pode demorar para entregar a próxima tarefa
		MaxFrameSize: DefaultMaxFrameSize,
		StatusPort:   0,
		Fleet: FleetConfig{
			Enabled:  false,
			BindAddr: "0.0.0.0",
			BindPort: 7946,
		},
	}
}

// Load lê um arquivo YAML sobre os valores padrão e valida o resultado
func Load(path string) (*WorkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate verifica os campos e preenche padrões ausentes
func Validate(cfg *WorkerConfig) error {
	if cfg.WorkerName == "" {
		return fmt.Errorf("worker_name is required")
	}

	if cfg.ServerAddr != "" {
		if err := ValidateServerAddr(cfg.ServerAddr); err != nil {
			return fmt.Errorf("server_addr: %w", err)
		}
	}

	if cfg.DialTimeout < 0 {
		return fmt.Errorf("dial_timeout must not be negative, got %v", cfg.DialTimeout)
	}
	if cfg.IOTimeout < 0 {
		return fmt.Errorf("io_timeout must not be negative, got %v", cfg.IOTimeout)
	}

	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return fmt.Errorf("status_port must be between 0 and 65535, got %d", cfg.StatusPort)
	}

	if cfg.Fleet.BindAddr == "" {
		cfg.Fleet.BindAddr = "0.0.0.0"
	}
	if cfg.Fleet.BindPort < 0 || cfg.Fleet.BindPort > 65535 {
		return fmt.Errorf("fleet.bind_port must be between 0 and 65535, got %d", cfg.Fleet.BindPort)
	}

	return nil
}

// ValidateServerAddr aceita "host:port" onde host é "localhost" ou um IPv4
func ValidateServerAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("expected <ip>:<port>, got %q", addr)
	}

	if host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil || ip.To4() == nil || ip.String() != host {
			return fmt.Errorf("invalid IPv4 address %q", host)
		}
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
