package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"linesearch/internal/paths"
	"linesearch/internal/pidfile"
)

var stopPIDFile string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server",
	Long:  "Send SIGTERM to the server recorded in the PID file.",
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPIDFile, "pid-file", "", "PID file (default <home>/linesearch.pid)")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	path := stopPIDFile
	if path == "" {
		var err error
		if path, err = paths.GetDefaultPIDPath(); err != nil {
			return err
		}
	}

	pid, err := pidfile.New(path).Signal(syscall.SIGTERM)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to linesearch (PID %d)\n", pid)
	return nil
}
