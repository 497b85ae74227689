package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tokamak-network/rla-coordinator/config"
)

const (
	defaultNetwork      = "sep"
	defaultLogLevel     = "info"
	defaultLogOutput    = "stdout"
	defaultPollInterval = 15 * time.Second
	defaultMaxProofs    = 4
	defaultOutputDir    = "./audit-run"

	defaultStateTreeDepth      = 10
	defaultIntStateTreeDepth   = 1
	defaultMsgTreeDepth        = 9
	defaultMsgTreeSubDepth     = 2
	defaultVoteOptionTreeDepth = 3
)

// Config holds the coordinator CLI's full configuration, assembled from
// flags/env/defaults by loadConfig.
type Config struct {
	Web3 Web3Config
	Poll PollConfig
	Prove ProveConfig
	Log  LogConfig
}

// Web3Config mirrors the teacher's web3 flag group, trimmed to the single
// audit contract this coordinator drives.
type Web3Config struct {
	PrivKey       string   `mapstructure:"privkey"`
	Network       string   `mapstructure:"network"`
	Rpc           []string `mapstructure:"rpc"`
	AuditContract string   `mapstructure:"auditContract"`
}

// PollConfig identifies the poll being audited and where its replay
// ingredients come from.
type PollConfig struct {
	ID                 string `mapstructure:"id"`
	InputFile          string `mapstructure:"inputFile"`
	CoordinatorPrivKey string `mapstructure:"coordinatorPrivKey"`
	SkipEndedCheck     bool   `mapstructure:"skipEndedCheck"`

	StateTreeDepth      int `mapstructure:"stateTreeDepth"`
	IntStateTreeDepth   int `mapstructure:"intStateTreeDepth"`
	MsgTreeDepth        int `mapstructure:"msgTreeDepth"`
	MsgTreeSubDepth     int `mapstructure:"msgTreeSubDepth"`
	VoteOptionTreeDepth int `mapstructure:"voteOptionTreeDepth"`

	// AuditID resumes driving an already-committed audit instead of
	// calling commitResult again (§7 resumability).
	AuditID uint64 `mapstructure:"auditId"`
}

// ProveConfig points at the two circuits' artifacts and bounds proving
// concurrency.
type ProveConfig struct {
	PMWasm       string        `mapstructure:"pmWasm"`
	PMProvingKey string        `mapstructure:"pmZkey"`
	TVWasm       string        `mapstructure:"tvWasm"`
	TVProvingKey string        `mapstructure:"tvZkey"`
	OutputDir    string        `mapstructure:"outputDir"`
	MaxConcurrent int          `mapstructure:"maxConcurrent"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("web3.network", defaultNetwork)
	v.SetDefault("web3.rpc", []string{})
	v.SetDefault("poll.stateTreeDepth", defaultStateTreeDepth)
	v.SetDefault("poll.intStateTreeDepth", defaultIntStateTreeDepth)
	v.SetDefault("poll.msgTreeDepth", defaultMsgTreeDepth)
	v.SetDefault("poll.msgTreeSubDepth", defaultMsgTreeSubDepth)
	v.SetDefault("poll.voteOptionTreeDepth", defaultVoteOptionTreeDepth)
	v.SetDefault("prove.outputDir", defaultOutputDir)
	v.SetDefault("prove.maxConcurrent", defaultMaxProofs)
	v.SetDefault("prove.pollInterval", defaultPollInterval)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)

	flag.StringP("web3.privkey", "k", "", "Ethereum private key used to sign audit contract transactions (required)")
	flag.StringP("web3.network", "n", defaultNetwork, fmt.Sprintf("network to use %v", config.AvailableNetworks))
	flag.StringSliceP("web3.rpc", "r", []string{}, "web3 rpc endpoint(s), comma-separated")
	flag.String("web3.auditContract", "", "custom audit contract address (overrides network default)")

	flag.String("poll.id", "", "poll identifier to audit (required)")
	flag.String("poll.inputFile", "", "path to the exported poll signup/message JSON file (required)")
	flag.String("poll.coordinatorPrivKey", "", "MACI coordinator decryption private key, decimal (required)")
	flag.Bool("poll.skipEndedCheck", false, "skip the poll-ended precondition (for dry runs against non-chain poll data)")
	flag.Int("poll.stateTreeDepth", defaultStateTreeDepth, "MACI state tree depth")
	flag.Int("poll.intStateTreeDepth", defaultIntStateTreeDepth, "MACI intermediate state tree depth (tally batch size = 5^depth)")
	flag.Int("poll.msgTreeDepth", defaultMsgTreeDepth, "MACI message tree depth")
	flag.Int("poll.msgTreeSubDepth", defaultMsgTreeSubDepth, "MACI message tree sub-depth (process-messages batch size = 5^depth)")
	flag.Int("poll.voteOptionTreeDepth", defaultVoteOptionTreeDepth, "MACI vote option tree depth")
	flag.Uint64("poll.auditId", 0, "resume driving an already-committed audit id instead of committing a new one")

	flag.String("prove.pmWasm", "", "process-messages circuit witness-calculator wasm path (required)")
	flag.String("prove.pmZkey", "", "process-messages circuit proving key path (required)")
	flag.String("prove.tvWasm", "", "tally-votes circuit witness-calculator wasm path (required)")
	flag.String("prove.tvZkey", "", "tally-votes circuit proving key path (required)")
	flag.StringP("prove.outputDir", "o", defaultOutputDir, "directory to persist commitments, proofs and status files (§6)")
	flag.Int("prove.maxConcurrent", defaultMaxProofs, "maximum number of batches proved concurrently")
	flag.Duration("prove.pollInterval", defaultPollInterval, "how often to poll chain state while waiting on a timer or confirmation")

	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "O", defaultLogOutput, "log output (stdout, stderr or filepath)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "rla-coordinator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: rla-coordinator [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, RLA_WEB3_PRIVKEY or RLA_POLL_ID\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("RLA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Web3.PrivKey == "" {
		return fmt.Errorf("web3 private key is required (--web3.privkey or RLA_WEB3_PRIVKEY)")
	}
	if _, ok := config.DefaultConfig[cfg.Web3.Network]; !ok && cfg.Web3.AuditContract == "" {
		return fmt.Errorf("invalid network %q, available networks: %v", cfg.Web3.Network, config.AvailableNetworks)
	}
	if cfg.Poll.ID == "" {
		return fmt.Errorf("poll id is required (--poll.id)")
	}
	if cfg.Poll.InputFile == "" {
		return fmt.Errorf("poll input file is required (--poll.inputFile)")
	}
	if cfg.Poll.CoordinatorPrivKey == "" {
		return fmt.Errorf("coordinator decryption private key is required (--poll.coordinatorPrivKey)")
	}
	if cfg.Prove.PMWasm == "" || cfg.Prove.PMProvingKey == "" {
		return fmt.Errorf("process-messages circuit artifacts are required (--prove.pmWasm, --prove.pmZkey)")
	}
	if cfg.Prove.TVWasm == "" || cfg.Prove.TVProvingKey == "" {
		return fmt.Errorf("tally-votes circuit artifacts are required (--prove.tvWasm, --prove.tvZkey)")
	}
	return nil
}

// auditContractAddress resolves the configured audit contract address,
// preferring an explicit override over the network default.
func auditContractAddress(cfg *Config) (string, error) {
	if cfg.Web3.AuditContract != "" {
		return cfg.Web3.AuditContract, nil
	}
	netCfg, ok := config.DefaultConfig[cfg.Web3.Network]
	if !ok {
		return "", fmt.Errorf("no default audit contract for network %q", cfg.Web3.Network)
	}
	return netCfg.AuditContract, nil
}
