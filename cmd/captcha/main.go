package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"captchaclient/internal/config"
	"captchaclient/internal/gateway"
	"captchaclient/internal/logging"
)

var (
	// Global flags
	configPath string
	serverURL  string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "captcha",
	Short: "Terminal client for character, image select and slide captchas",
	Long: `captcha talks to a captcha backend over its generate/verify API.

Run without arguments to start the interactive client. Use the generate and
verify subcommands for scripting, and stub to serve a local backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if serverURL != "" {
			cfg.Server.BaseURL = serverURL
		}
		if timeout > 0 {
			cfg.Server.Timeout = timeout.String()
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		interactive := !cmd.HasParent()
		logCfg := cfg.Logging.ToLogging()
		// The interactive client owns the terminal. The stub always logs its
		// requests to stderr, the one-shot commands only when verbose.
		logCfg.Console = cmd.Name() == "stub" || (verbose && !interactive)
		if verbose {
			logCfg.Level = "debug"
			if interactive {
				logCfg.DebugMode = true
			}
		}
		if err := logging.Initialize(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Boot("config loaded from %s, server %s", configPath, cfg.Server.BaseURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runInteractive,
}

func newClient() *gateway.Client {
	return gateway.New(cfg.Server.BaseURL, cfg.GetServerTimeout())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Backend base URL (overrides config and CAPTCHA_SERVER_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (overrides config)")

	rootCmd.Flags().StringVarP(&startVariant, "type", "t", "", "Challenge type to start with (character, image_select, slide)")
	rootCmd.Flags().BoolVar(&noAutoStart, "idle", false, "Start idle instead of generating a challenge")

	generateCmd.Flags().StringVarP(&generateType, "type", "t", "character", "Challenge type (character, image_select, slide)")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Print the challenge as JSON")

	verifyCmd.Flags().StringVar(&verifyID, "id", "", "Captcha id returned by generate")
	verifyCmd.Flags().StringVarP(&verifyType, "type", "t", "", "Challenge type (character, image_select, slide)")
	verifyCmd.Flags().StringVar(&verifyCode, "code", "", "Typed code (character)")
	verifyCmd.Flags().StringVar(&verifySelect, "select", "", "Comma-separated zero-based image indexes (image_select)")
	verifyCmd.Flags().IntVar(&verifySlideX, "slide-x", -1, "Release position in percent of the track (slide)")
	verifyCmd.Flags().StringVar(&verifyTrack, "track", "", "Comma-separated sampled positions (slide)")
	verifyCmd.Flags().Int64Var(&verifyDuration, "duration", 0, "Drag duration in milliseconds (slide)")
	_ = verifyCmd.MarkFlagRequired("id")
	_ = verifyCmd.MarkFlagRequired("type")

	stubCmd.Flags().StringVar(&stubAddr, "addr", "", "Listen address (overrides config stub.addr)")
	stubCmd.Flags().DurationVar(&stubTTL, "ttl", 0, "Challenge time to live (overrides config stub.ttl)")
	stubCmd.Flags().Int64Var(&stubSeed, "seed", 0, "Random seed for fixtures (0 = time based)")

	rootCmd.AddCommand(generateCmd, verifyCmd, stubCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
