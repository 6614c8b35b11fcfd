package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
}

type Settings struct {
	OutputMode     string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int

	CustodyBaseURL string
	CustodyAPIKey  string
	PricingBaseURL string

	SettlementWallet string
	LiquidityWallet  string

	SlippageBps            int64
	OperatingBufferDecimal string
	PollInterval           time.Duration
	StepTimeout            time.Duration

	JournalPath     string
	JournalLockPath string

	ListenAddr string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Custody struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"custody"`
	Pricing struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"pricing"`
	Wallets struct {
		Settlement string `yaml:"settlement"`
		Liquidity  string `yaml:"liquidity"`
	} `yaml:"wallets"`
	Execution struct {
		SlippageBps     *int64 `yaml:"slippage_bps"`
		OperatingBuffer string `yaml:"operating_buffer"`
		PollInterval    string `yaml:"poll_interval"`
		StepTimeout     string `yaml:"step_timeout"`
	} `yaml:"execution"`
	Journal struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"journal"`
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
}

const (
	EnvCustodyBaseURL = "TREASURY_CUSTODY_URL"
	EnvCustodyAPIKey  = "TREASURY_CUSTODY_API_KEY"
	EnvPricingBaseURL = "TREASURY_PRICING_URL"
	EnvSettlement     = "TREASURY_SETTLEMENT_WALLET"
	EnvLiquidity      = "TREASURY_LIQUIDITY_WALLET"
)

func Load(flags GlobalFlags) (Settings, error) {
	// A local .env is a convenience for operators; absence is not an error.
	_ = godotenv.Load()

	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.SlippageBps <= 0 {
		settings.SlippageBps = 500
	}
	if settings.OperatingBufferDecimal == "" {
		settings.OperatingBufferDecimal = "1"
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 2 * time.Second
	}
	if settings.StepTimeout <= 0 {
		settings.StepTimeout = 2 * time.Minute
	}
	if settings.ListenAddr == "" {
		settings.ListenAddr = ":8287"
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         10 * time.Second,
		Retries:         1,
		SlippageBps:     500,
		PollInterval:    2 * time.Second,
		StepTimeout:     2 * time.Minute,
		JournalPath:     filepath.Join(dataDir, "journal.db"),
		JournalLockPath: filepath.Join(dataDir, "journal.lock"),
		ListenAddr:      ":8287",
	}, nil
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".treasury"), nil
}

func resolveConfigPath(override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	return filepath.Join(home, ".treasury", "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if cfg.Output != "" {
		settings.OutputMode = cfg.Output
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("parse timeout in config: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Custody.BaseURL != "" {
		settings.CustodyBaseURL = cfg.Custody.BaseURL
	}
	if cfg.Custody.APIKey != "" {
		settings.CustodyAPIKey = cfg.Custody.APIKey
	}
	if cfg.Custody.APIKeyEnv != "" {
		if v := os.Getenv(cfg.Custody.APIKeyEnv); v != "" {
			settings.CustodyAPIKey = v
		}
	}
	if cfg.Pricing.BaseURL != "" {
		settings.PricingBaseURL = cfg.Pricing.BaseURL
	}
	if cfg.Wallets.Settlement != "" {
		settings.SettlementWallet = cfg.Wallets.Settlement
	}
	if cfg.Wallets.Liquidity != "" {
		settings.LiquidityWallet = cfg.Wallets.Liquidity
	}
	if cfg.Execution.SlippageBps != nil {
		settings.SlippageBps = *cfg.Execution.SlippageBps
	}
	if cfg.Execution.OperatingBuffer != "" {
		settings.OperatingBufferDecimal = cfg.Execution.OperatingBuffer
	}
	if cfg.Execution.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Execution.PollInterval)
		if err != nil {
			return fmt.Errorf("parse poll_interval in config: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Execution.StepTimeout != "" {
		d, err := time.ParseDuration(cfg.Execution.StepTimeout)
		if err != nil {
			return fmt.Errorf("parse step_timeout in config: %w", err)
		}
		settings.StepTimeout = d
	}
	if cfg.Journal.Path != "" {
		settings.JournalPath = cfg.Journal.Path
	}
	if cfg.Journal.LockPath != "" {
		settings.JournalLockPath = cfg.Journal.LockPath
	}
	if cfg.Server.Listen != "" {
		settings.ListenAddr = cfg.Server.Listen
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv(EnvCustodyBaseURL); v != "" {
		settings.CustodyBaseURL = v
	}
	if v := os.Getenv(EnvCustodyAPIKey); v != "" {
		settings.CustodyAPIKey = v
	}
	if v := os.Getenv(EnvPricingBaseURL); v != "" {
		settings.PricingBaseURL = v
	}
	if v := os.Getenv(EnvSettlement); v != "" {
		settings.SettlementWallet = v
	}
	if v := os.Getenv(EnvLiquidity); v != "" {
		settings.LiquidityWallet = v
	}
	if v := os.Getenv("TREASURY_SLIPPAGE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.SlippageBps = bps
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("--json and --plain are mutually exclusive")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.ResultsOnly {
		settings.ResultsOnly = true
	}
	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		settings.EnableCommands = out
	}
	if strings.TrimSpace(flags.Timeout) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(flags.Timeout))
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	return nil
}
