package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pokerd",
	Short: "Realtime planning poker server",
	Long: "pokerd serves collaborative planning poker boards: clients join a\n" +
		"board over WebSocket, cast votes, and watch the round resolve live.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to TOML config file")
	rootCmd.AddCommand(serveCmd)
}

func defaultConfigPath() string {
	if p := os.Getenv("POKER_CONFIG"); p != "" {
		return p
	}
	return ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
