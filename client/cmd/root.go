/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shellctl",
	Short: "talk to a shell-server",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var addr string
var timeout time.Duration
var format string

func init() {
	rootCmd.PersistentFlags().StringVarP(&addr, "address", "a", "http://localhost:8080", "shell server address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "request timeout")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "", "", "print format, '', 'table' or 'json'")
}
