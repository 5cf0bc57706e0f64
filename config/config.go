package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Trading TradingConfig `yaml:"trading"`
	Storage StorageConfig `yaml:"storage"`
	Venue   VenueConfig   `yaml:"-"` // solo env, nunca YAML
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig controla el servidor HTTP.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// APIConfig contiene los base URLs de las APIs del venue.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	DataBase  string `yaml:"data_base"`
}

// TradingConfig controla los límites del engine de parlays.
type TradingConfig struct {
	MinOrderSizeUSDC      float64 `yaml:"min_order_size_usdc"`
	MinFairPrice          float64 `yaml:"min_fair_price"`
	MaxFairPrice          float64 `yaml:"max_fair_price"`
	DefaultMaxSlippageBps int     `yaml:"default_max_slippage_bps"`
	MaxLegs               int     `yaml:"max_legs"`
	OrderTTLHours         int     `yaml:"order_ttl_hours"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// VenueConfig son las credenciales del CLOB y la key del signer local.
// Solo se leen de variables de entorno, nunca del YAML.
type VenueConfig struct {
	APIKey        string
	Secret        string
	Passphrase    string
	Address       string
	SignerKey     string // private key hex, opcional
	SignerNegRisk bool
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// OrderTTL devuelve la vida útil de las órdenes como time.Duration.
func (c *Config) OrderTTL() time.Duration {
	return time.Duration(c.Trading.OrderTTLHours) * time.Hour
}

// HasVenueCreds indica si hay credenciales L2 para enviar órdenes reales.
func (c *Config) HasVenueCreds() bool {
	return c.Venue.APIKey != "" && c.Venue.Secret != "" && c.Venue.Passphrase != ""
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	cfg.Venue.APIKey = os.Getenv("CLOB_API_KEY")
	cfg.Venue.Secret = os.Getenv("CLOB_SECRET")
	cfg.Venue.Passphrase = os.Getenv("CLOB_PASSPHRASE")
	cfg.Venue.Address = os.Getenv("WALLET_ADDRESS")
	cfg.Venue.SignerKey = os.Getenv("SIGNER_PRIVATE_KEY")
	cfg.Venue.SignerNegRisk = os.Getenv("SIGNER_NEG_RISK") == "true"
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Trading.MinOrderSizeUSDC <= 0 {
		cfg.Trading.MinOrderSizeUSDC = 5
	}
	if cfg.Trading.MinFairPrice <= 0 {
		cfg.Trading.MinFairPrice = 0.01
	}
	if cfg.Trading.MaxFairPrice <= 0 {
		cfg.Trading.MaxFairPrice = 0.99
	}
	if cfg.Trading.DefaultMaxSlippageBps <= 0 {
		cfg.Trading.DefaultMaxSlippageBps = 300
	}
	if cfg.Trading.MaxLegs <= 0 {
		cfg.Trading.MaxLegs = 6
	}
	if cfg.Trading.OrderTTLHours <= 0 {
		cfg.Trading.OrderTTLHours = 24 * 7
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "parlayd.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
