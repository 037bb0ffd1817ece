package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"alive-keeper/internal/models"
)

const (
	DefaultChainID     = 56 // BNB Smart Chain
	DefaultSubgraphURL = "https://api.studio.thegraph.com/query/1724416/bsc-alive-referral/version/latest"
)

// Tuning holds the timer cadences and retry bounds. Every field can be
// overridden from the YAML file named by CONFIG_FILE.
type Tuning struct {
	ReconcileInterval      time.Duration `yaml:"reconcile_interval"`
	DecayInterval          time.Duration `yaml:"decay_interval"`
	EmissionInterval       time.Duration `yaml:"emission_interval"`
	LoginMaxAttempts       int           `yaml:"login_max_attempts"`
	LoginRetryDelay        time.Duration `yaml:"login_retry_delay"`
	ActivationPollAttempts int           `yaml:"activation_poll_attempts"`
	ActivationPollInterval time.Duration `yaml:"activation_poll_interval"`
	HTTPTimeout            time.Duration `yaml:"http_timeout"`
}

func DefaultTuning() Tuning {
	return Tuning{
		ReconcileInterval:      60 * time.Second,
		DecayInterval:          time.Second,
		EmissionInterval:       100 * time.Millisecond,
		LoginMaxAttempts:       3,
		LoginRetryDelay:        2 * time.Second,
		ActivationPollAttempts: 5,
		ActivationPollInterval: 3 * time.Second,
		HTTPTimeout:            10 * time.Second,
	}
}

type Config struct {
	Env  string
	Port string

	APIURL      string
	SubgraphURL string
	RPCURL      string
	ChainID     int64

	TokenContract      common.Address
	ClaimContract      common.Address
	ActivationContract common.Address
	TreasuryAddress    common.Address
	ActivationFee      *big.Int // wei

	WalletPrivateKey string

	RedisURL  string
	RedisPass string
	RedisDB   int

	Tuning Tuning
}

// required lists the keys that have no safe default. Load refuses to start
// when any of them is missing.
var required = []string{
	"API_URL",
	"RPC_URL",
	"TOKEN_CONTRACT",
	"CLAIM_CONTRACT",
	"ACTIVATION_CONTRACT",
	"TREASURY_ADDRESS",
	"ACTIVATION_FEE",
	"WALLET_PRIVATE_KEY",
}

func Load() (*Config, error) {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		Env:              getEnv("ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		APIURL:           strings.TrimRight(os.Getenv("API_URL"), "/"),
		SubgraphURL:      getEnv("SUBGRAPH_URL", DefaultSubgraphURL),
		RPCURL:           os.Getenv("RPC_URL"),
		WalletPrivateKey: strings.TrimSpace(os.Getenv("WALLET_PRIVATE_KEY")),
		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:        os.Getenv("REDIS_PASS"),
		Tuning:           DefaultTuning(),
	}

	var err error
	if cfg.ChainID, err = strconv.ParseInt(getEnv("CHAIN_ID", strconv.Itoa(DefaultChainID)), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid CHAIN_ID: %v", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %v", err)
	}

	addresses := []struct {
		key string
		dst *common.Address
	}{
		{"TOKEN_CONTRACT", &cfg.TokenContract},
		{"CLAIM_CONTRACT", &cfg.ClaimContract},
		{"ACTIVATION_CONTRACT", &cfg.ActivationContract},
		{"TREASURY_ADDRESS", &cfg.TreasuryAddress},
	}
	for _, a := range addresses {
		value := strings.TrimSpace(os.Getenv(a.key))
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid %s: %q is not an address", a.key, value)
		}
		*a.dst = common.HexToAddress(value)
	}

	if cfg.ActivationFee, err = models.ParseTokenAmount(os.Getenv("ACTIVATION_FEE")); err != nil {
		return nil, fmt.Errorf("invalid ACTIVATION_FEE: %v", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.Tuning.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the non-zero values found in a YAML file.
func (t *Tuning) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay Tuning
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if overlay.ReconcileInterval > 0 {
		t.ReconcileInterval = overlay.ReconcileInterval
	}
	if overlay.DecayInterval > 0 {
		t.DecayInterval = overlay.DecayInterval
	}
	if overlay.EmissionInterval > 0 {
		t.EmissionInterval = overlay.EmissionInterval
	}
	if overlay.LoginMaxAttempts > 0 {
		t.LoginMaxAttempts = overlay.LoginMaxAttempts
	}
	if overlay.LoginRetryDelay > 0 {
		t.LoginRetryDelay = overlay.LoginRetryDelay
	}
	if overlay.ActivationPollAttempts > 0 {
		t.ActivationPollAttempts = overlay.ActivationPollAttempts
	}
	if overlay.ActivationPollInterval > 0 {
		t.ActivationPollInterval = overlay.ActivationPollInterval
	}
	if overlay.HTTPTimeout > 0 {
		t.HTTPTimeout = overlay.HTTPTimeout
	}
	return nil
}

func (t Tuning) Validate() error {
	switch {
	case t.ReconcileInterval <= 0, t.DecayInterval <= 0, t.EmissionInterval <= 0:
		return fmt.Errorf("timer intervals must be positive")
	case t.LoginMaxAttempts < 1:
		return fmt.Errorf("login_max_attempts must be at least 1")
	case t.ActivationPollAttempts < 1:
		return fmt.Errorf("activation_poll_attempts must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
