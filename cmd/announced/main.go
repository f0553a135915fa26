package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/propease/announce/internal/config"
)

var (
	cfgFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "announced",
	Short: "PropEase announcement dispatch service",
	Long:  `announced resolves announcement audiences and delivers bulk announcements over email, SMS and WhatsApp in batches.`,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("announced version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "/etc/propease/announced.yaml", "config file path")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, configCmd, versionCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(cfgFile); err != nil {
		return err
	}
	fmt.Println("Configuration is valid")
	return nil
}
