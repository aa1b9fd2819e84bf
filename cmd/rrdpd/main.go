// Command rrdpd runs one RRDP publication cycle: scan a source tree,
// diff it against the previously published state, and atomically publish
// an updated notification/snapshot/delta set.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rrdpd/internal/app"
	"rrdpd/internal/backupvault"
	"rrdpd/internal/config"
	"rrdpd/internal/rrdp"
)

const version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers configuration in increasing precedence: built-in
// defaults, then an optional config file, then environment variables,
// then explicit CLI flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	defaults := app.GetDefaults()

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = defaults.ConfigPath
	}

	cfg := config.New()
	if configPath != "" {
		fileCfg, err := config.ReadFromFile(configPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else {
			cfg = fileCfg
		}
	}

	if defaults.Source != "" {
		cfg.Source = defaults.Source
	}
	if defaults.Target != "" {
		cfg.Target = defaults.Target
	}
	if defaults.RsyncBase != "" {
		cfg.RsyncBase = defaults.RsyncBase
	}
	if defaults.HTTPSBase != "" {
		cfg.HTTPSBase = defaults.HTTPSBase
	}
	if defaults.LogDir != "" {
		cfg.LogDir = defaults.LogDir
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source, _ = flags.GetString("source")
	}
	if flags.Changed("target") {
		cfg.Target, _ = flags.GetString("target")
	}
	if flags.Changed("rsync") {
		cfg.RsyncBase, _ = flags.GetString("rsync")
	}
	if flags.Changed("https") {
		cfg.HTTPSBase, _ = flags.GetString("https")
	}
	if flags.Changed("max_deltas") {
		cfg.MaxDeltas, _ = flags.GetInt("max_deltas")
	}
	if cfg.MaxDeltas < 1 {
		return nil, fmt.Errorf("%w: max_deltas must be at least 1, got %d", rrdp.ErrConfig, cfg.MaxDeltas)
	}

	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:          "rrdpd",
	Short:        "RRDP publication engine",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Println("rrdpd " + version)
			return nil
		}

		doClean := false
		if len(args) == 1 {
			if args[0] != "clean" {
				return fmt.Errorf("unknown argument %q, only \"clean\" is accepted", args[0])
			}
			doClean = true
		}

		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("initializing rrdpd: %w", err)
		}
		defer a.Close()

		result, err := a.Run(context.Background())
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		fmt.Printf("%s: session=%s serial=%d publishes=%d updates=%d withdraws=%d\n",
			result.Plan.Kind, result.Plan.SessionID, result.Plan.Serial,
			len(result.Plan.Delta.Publishes), len(result.Plan.Delta.Updates), len(result.Plan.Delta.Withdraws))

		if doClean {
			removed, err := a.Clean()
			if err != nil {
				return fmt.Errorf("clean failed: %w", err)
			}
			fmt.Printf("removed %d unreferenced director(ies)\n", removed)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults := app.GetDefaults()
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = defaults.ConfigPath
		}
		if configPath == "" {
			return fmt.Errorf("no config path given: pass --config or set RRDPD_CONFIG")
		}

		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		if err := config.Init(configPath, cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective, fully layered configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Printf("source:      %s\n", cfg.Source)
		fmt.Printf("target:      %s\n", cfg.Target)
		fmt.Printf("rsync:       %s\n", cfg.RsyncBase)
		fmt.Printf("https:       %s\n", cfg.HTTPSBase)
		fmt.Printf("max_deltas:  %d\n", cfg.MaxDeltas)
		fmt.Printf("log_dir:     %s\n", cfg.LogDir)
		fmt.Printf("history:     enabled=%t db_path=%s\n", cfg.History.Enabled, cfg.History.DBPath)
		fmt.Printf("mirror:      enabled=%t bucket=%s region=%s prefix=%s\n",
			cfg.Mirror.Enabled, cfg.Mirror.Bucket, cfg.Mirror.Region, cfg.Mirror.Prefix)
		fmt.Printf("backup:      enabled=%t output_path=%s recipient_path=%s\n",
			cfg.Backup.Enabled, cfg.Backup.OutputPath, cfg.Backup.RecipientPath)
		fmt.Printf("filesystem:  ignore=%v\n", cfg.Filesystem.Ignore)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the local run-history audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		a, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("initializing rrdpd: %w", err)
		}
		defer a.Close()

		runs, err := a.History(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-8s  session=%-36s serial=%-4d  %-8s %s\n",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Action, r.SessionID, r.Serial, r.Status, r.Detail)
		}
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the backup vault's age key pair",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a new age X25519 key pair for the backup vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, _ := cmd.Flags().GetString("public")
		priv, _ := cmd.Flags().GetString("private")
		if pub == "" || priv == "" {
			return fmt.Errorf("--public and --private are both required")
		}

		fmt.Fprint(os.Stderr, "Enter passphrase to encrypt the private key: ")
		passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}

		if err := backupvault.GenerateKeyPair(pub, priv, string(passphrase)); err != nil {
			return fmt.Errorf("generating key pair: %w", err)
		}
		fmt.Printf("Public key written to %s\n", pub)
		fmt.Printf("Private key written to %s (encrypted)\n", priv)
		return nil
	},
}

func init() {
	rootCmd.Flags().String("source", "", "source tree root")
	rootCmd.Flags().String("target", "", "RRDP output tree root")
	rootCmd.Flags().String("rsync", "", "base rsync URI")
	rootCmd.Flags().String("https", "", "base HTTPS URI")
	rootCmd.Flags().Int("max_deltas", config.DefaultMaxDeltas, "delta-history cap")
	rootCmd.Flags().String("config", "", "optional TOML config file")
	rootCmd.Flags().BoolP("version", "V", false, "print version and exit")

	configInitCmd.Flags().String("source", "", "source tree root")
	configInitCmd.Flags().String("target", "", "RRDP output tree root")
	configInitCmd.Flags().String("rsync", "", "base rsync URI")
	configInitCmd.Flags().String("https", "", "base HTTPS URI")
	configInitCmd.Flags().Int("max_deltas", config.DefaultMaxDeltas, "delta-history cap")
	configInitCmd.Flags().String("config", "", "config file path to write")

	configShowCmd.Flags().String("config", "", "config file to read")
	configShowCmd.Flags().String("source", "", "source tree root")
	configShowCmd.Flags().String("target", "", "RRDP output tree root")
	configShowCmd.Flags().String("rsync", "", "base rsync URI")
	configShowCmd.Flags().String("https", "", "base HTTPS URI")
	configShowCmd.Flags().Int("max_deltas", config.DefaultMaxDeltas, "delta-history cap")

	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of runs to show")
	historyCmd.Flags().String("config", "", "config file to read")

	keysInitCmd.Flags().String("public", "", "path to write the plaintext public key")
	keysInitCmd.Flags().String("private", "", "path to write the passphrase-encrypted private key")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	keysCmd.AddCommand(keysInitCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(keysCmd)
}
