package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	simulateFlags   clientFlags
	simulateClients int
	simulateQuery   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Fire concurrent queries at a running server",
	Long: `Start N clients at once, each sending the same query, print every reply
and the total wall time.

Examples:
  linesearch simulate
  linesearch simulate --clients 500 --query example`,
	RunE: runSimulate,
}

func init() {
	simulateFlags.register(simulateCmd)
	simulateCmd.Flags().IntVar(&simulateClients, "clients", 50, "Number of concurrent clients")
	simulateCmd.Flags().StringVar(&simulateQuery, "query", "11;0;23;11;0;20;5;0;", "Query every client sends")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateClients <= 0 {
		return fmt.Errorf("--clients must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := simulateFlags.client(cmd, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	counts := make(map[string]int)

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < simulateClients; i++ {
		g.Go(func() error {
			reply, err := c.Query(cmd.Context(), simulateQuery)
			if err != nil {
				reply = "ERROR: " + err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			counts[reply]++
			fmt.Fprintf(out, "Server response: %s\n", reply)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	fmt.Fprintf(out, "Total execution time for %d clients: %.4f seconds\n", simulateClients, elapsed.Seconds())
	replies := make([]string, 0, len(counts))
	for reply := range counts {
		replies = append(replies, reply)
	}
	sort.Strings(replies)
	for _, reply := range replies {
		fmt.Fprintf(out, "  %6d  %s\n", counts[reply], reply)
	}
	return nil
}
