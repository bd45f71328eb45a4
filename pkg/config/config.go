package config

import (
	"strings"
	"time"

	"tradeprobe/pkg/models"
	"tradeprobe/pkg/sim"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "TRADEPROBE"

const (
	KeyServer           = "server"
	KeyTokens           = "tokens"
	KeyTeams            = "teams"
	KeyDuration         = "duration"
	KeyPhases           = "phases"
	KeyLoginTimeout     = "login_timeout"
	KeyOrderTimeout     = "order_timeout"
	KeyProductionGrace  = "production_grace"
	KeyStagger          = "stagger"
	KeyCloseGrace       = "close_grace"
	KeyProgressInterval = "progress_interval"
	KeyTopN             = "top_n"
	KeyReport           = "report"
	KeyLogFile          = "log_file"
	KeyVerbose          = "verbose"
	KeyMetricsAddr      = "metrics_addr"
	KeySeed             = "seed"
	KeyInboxHighWater   = "inbox_high_water"
)

const (
	defaultProductionInterval = 15 * time.Second
	defaultTradingInterval    = 10 * time.Second
)

var ErrNoTokens = errors.New("no tokens or teams configured")

type Config struct {
	Server string
	Teams  []models.StrategyProfile
	Phases []sim.Phase

	Duration         time.Duration
	LoginTimeout     time.Duration
	OrderTimeout     time.Duration
	ProductionGrace  time.Duration
	Stagger          time.Duration
	CloseGrace       time.Duration
	ProgressInterval time.Duration

	TopN           int
	Seed           int64
	InboxHighWater int

	Report      string
	LogFile     string
	Verbose     bool
	MetricsAddr string
}

type teamRecord struct {
	Token              string        `mapstructure:"token"`
	Name               string        `mapstructure:"name"`
	Species            string        `mapstructure:"species"`
	Strategy           string        `mapstructure:"strategy"`
	Risk               string        `mapstructure:"risk"`
	Products           []string      `mapstructure:"products"`
	ProductionInterval time.Duration `mapstructure:"production_interval"`
	TradingInterval    time.Duration `mapstructure:"trading_interval"`
}

// New returns a viper instance reading TRADEPROBE_* variables on top of the
// defaults.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServer, "ws://localhost:8080/ws")
	v.SetDefault(KeyDuration, 15*time.Minute)
	v.SetDefault(KeyLoginTimeout, 10*time.Second)
	v.SetDefault(KeyOrderTimeout, 5*time.Second)
	v.SetDefault(KeyProductionGrace, 2*time.Second)
	v.SetDefault(KeyStagger, 500*time.Millisecond)
	v.SetDefault(KeyCloseGrace, 2*time.Second)
	v.SetDefault(KeyProgressInterval, 30*time.Second)
	v.SetDefault(KeyTopN, 3)
	v.SetDefault(KeySeed, 0)
	v.SetDefault(KeyInboxHighWater, 0)
}

// ReadFile merges a config file; its format follows the extension.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	return nil
}

// Load builds a validated Config from v. Teams listed under "teams" come
// first, then one synthesized profile per remaining token.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server:           v.GetString(KeyServer),
		Duration:         v.GetDuration(KeyDuration),
		LoginTimeout:     v.GetDuration(KeyLoginTimeout),
		OrderTimeout:     v.GetDuration(KeyOrderTimeout),
		ProductionGrace:  v.GetDuration(KeyProductionGrace),
		Stagger:          v.GetDuration(KeyStagger),
		CloseGrace:       v.GetDuration(KeyCloseGrace),
		ProgressInterval: v.GetDuration(KeyProgressInterval),
		TopN:             v.GetInt(KeyTopN),
		Seed:             v.GetInt64(KeySeed),
		InboxHighWater:   v.GetInt(KeyInboxHighWater),
		Report:           v.GetString(KeyReport),
		LogFile:          v.GetString(KeyLogFile),
		Verbose:          v.GetBool(KeyVerbose),
		MetricsAddr:      v.GetString(KeyMetricsAddr),
	}
	if cfg.Server == "" {
		return nil, errors.New("server address is empty")
	}

	var records []teamRecord
	if err := v.UnmarshalKey(KeyTeams, &records); err != nil {
		return nil, errors.Wrap(err, "decode teams")
	}
	teams, err := profiles(records, ParseTokens(v.GetStringSlice(KeyTokens)))
	if err != nil {
		return nil, err
	}
	cfg.Teams = teams

	var specs []sim.PhaseSpec
	if err := v.UnmarshalKey(KeyPhases, &specs); err != nil {
		return nil, errors.Wrap(err, "decode phases")
	}
	if len(specs) == 0 && cfg.Duration <= 0 {
		return nil, errors.Errorf("duration must be positive, got %s", cfg.Duration)
	}
	if cfg.Phases, err = sim.Plan(specs, cfg.Duration); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseTokens flattens comma-separated values, trimming blanks and repeats.
func ParseTokens(values []string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, v := range values {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" || seen[tok] {
				continue
			}
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// profiles turns team records and bare tokens into strategy profiles. Bare
// tokens cycle through the strategy kinds by position.
func profiles(records []teamRecord, tokens []string) ([]models.StrategyProfile, error) {
	seen := make(map[string]bool)
	var out []models.StrategyProfile

	for i, r := range records {
		if r.Token == "" {
			return nil, errors.Errorf("team %d (%s): no token", i, r.Name)
		}
		if seen[r.Token] {
			continue
		}
		seen[r.Token] = true

		kind := models.StrategyKinds[len(out)%len(models.StrategyKinds)]
		if r.Strategy != "" {
			k, err := models.ParseStrategyKind(r.Strategy)
			if err != nil {
				return nil, errors.Wrapf(err, "team %d (%s)", i, r.Name)
			}
			kind = k
		}
		risk, err := models.ParseRiskLevel(r.Risk)
		if err != nil {
			return nil, errors.Wrapf(err, "team %d (%s)", i, r.Name)
		}

		p := synthesize(r.Token, len(out))
		p.Kind = kind
		p.Risk = risk
		if r.Name != "" {
			p.Name = r.Name
		}
		p.Species = r.Species
		if len(r.Products) > 0 {
			p.Products = upper(r.Products)
		}
		if r.ProductionInterval != 0 {
			p.ProductionInterval = r.ProductionInterval
		}
		if r.TradingInterval != 0 {
			p.TradingInterval = r.TradingInterval
		}
		out = append(out, p)
	}

	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, synthesize(tok, len(out)))
	}

	if len(out) == 0 {
		return nil, ErrNoTokens
	}
	return out, nil
}

func synthesize(token string, index int) models.StrategyProfile {
	return models.StrategyProfile{
		Token:              token,
		Name:               token,
		Kind:               models.StrategyKinds[index%len(models.StrategyKinds)],
		Risk:               models.RiskMedium,
		Products:           append([]string(nil), models.Products...),
		ProductionInterval: defaultProductionInterval,
		TradingInterval:    defaultTradingInterval,
	}
}

func upper(products []string) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = strings.ToUpper(strings.TrimSpace(p))
	}
	return out
}
