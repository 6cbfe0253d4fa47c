package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"peakload/internal/banner"
	"peakload/internal/cli"
	"peakload/internal/search"
	"peakload/internal/target"
)

var (
	cfgFile string

	// CLI Flags
	baseURL       string
	users         int
	rampUp        float64
	timeout       int
	findMax       bool
	strategy      string
	errorRate     float64
	respThreshold float64
	outPrefix     string
	persist       bool
)

var rootCmd = &cobra.Command{
	Use:   "peakload",
	Short: "peakload - SLA-aware throughput finder",
	Long: `
peakload load-tests an activity-signup API with simulated user sessions,
measures per-endpoint latency and success rates, and searches for the
maximum concurrency that still meets an error-rate SLA.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if baseURL == "" {
			return cmd.Usage()
		}

		opts := cli.Options{
			BaseURL:   baseURL,
			Users:     users,
			RampUp:    time.Duration(rampUp * float64(time.Second)),
			Timeout:   time.Duration(timeout) * time.Second,
			FindMax:   findMax,
			Strategy:  search.Strategy(strategy),
			OutPrefix: outPrefix,
			Persist:   persist,
			SLA: search.SLA{
				ErrorRateThreshold:    viper.GetFloat64("error_rate_threshold"),
				ResponseTimeThreshold: viper.GetFloat64("response_time_threshold"),
			},
		}
		if errorRate > 0 {
			opts.SLA.ErrorRateThreshold = errorRate
		}
		if respThreshold > 0 {
			opts.SLA.ResponseTimeThreshold = respThreshold
		}

		return cli.Start(opts)
	},
	SilenceUsage: true,
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(targetCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.peakload.yaml)")

	rootCmd.Flags().StringVarP(&baseURL, "url", "u", "", "Base URL of the target service")
	rootCmd.Flags().IntVarP(&users, "users", "U", 50, "Number of concurrent users to simulate")
	rootCmd.Flags().Float64Var(&rampUp, "ramp-up", 5.0, "Ramp-up time in seconds")
	rootCmd.Flags().IntVar(&timeout, "timeout", 10, "Request timeout in seconds")
	rootCmd.Flags().BoolVar(&findMax, "find-max", false, "Find maximum throughput that maintains the SLA")
	rootCmd.Flags().StringVar(&strategy, "strategy", string(search.StrategyEscalate), "Search strategy: escalate or sweep")
	rootCmd.Flags().Float64Var(&errorRate, "error-rate", 0, "SLA error rate threshold (overrides config)")
	rootCmd.Flags().Float64Var(&respThreshold, "response-time", 0, "SLA response time ceiling in seconds (overrides config)")
	rootCmd.Flags().StringVarP(&outPrefix, "out", "o", "", "Output filename prefix for JSON/CSV reports")
	rootCmd.Flags().BoolVar(&persist, "persist", false, "Persist trials in a session database")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".peakload")
		}
	}

	viper.SetDefault("error_rate_threshold", 0.0001)
	viper.SetDefault("response_time_threshold", 1.0)

	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// --- Target Subcommand ---
var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Run the built-in activities API for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		maxInflight, _ := cmd.Flags().GetInt64("max-inflight")
		minDelay, _ := cmd.Flags().GetDuration("min-delay")
		maxDelay, _ := cmd.Flags().GetDuration("max-delay")

		return target.Start(target.ServerConfig{
			Port:        port,
			MinDelay:    minDelay,
			MaxDelay:    maxDelay,
			MaxInflight: maxInflight,
		})
	},
}

func init() {
	targetCmd.Flags().IntP("port", "p", 8000, "Port to serve the activities API on")
	targetCmd.Flags().Int64("max-inflight", 0, "Shed load above this many in-flight requests (0 = unlimited)")
	targetCmd.Flags().Duration("min-delay", 0, "Minimum injected latency per request")
	targetCmd.Flags().Duration("max-delay", 0, "Maximum injected latency per request")
}
