package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryFlags clientFlags

var queryCmd = &cobra.Command{
	Use:   "query [string]",
	Short: "Send a query to a running server",
	Long: `Send one query and print the reply. Without an argument, read queries
from stdin until "exit".

Examples:
  linesearch query '3;0;1;28;0;7;5;0;'
  linesearch query --addr 10.0.0.5:12345 --tls --ca server.crt example
  linesearch query`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryFlags.register(queryCmd)
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := queryFlags.client(cmd, cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		reply, err := c.Query(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
		return nil
	}

	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "Enter query (or 'exit' to quit): ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := sc.Text()
		if strings.EqualFold(strings.TrimSpace(line), "exit") {
			return nil
		}
		reply, err := c.Query(cmd.Context(), line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Server response: %s\n", reply)
	}
}
