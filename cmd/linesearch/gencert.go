package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"linesearch/internal/tlsutil"
)

var (
	gencertHosts []string
	gencertCert  string
	gencertKey   string
)

var gencertCmd = &cobra.Command{
	Use:   "gencert",
	Short: "Generate a self-signed TLS certificate",
	Long: `Write a self-signed certificate and key for server.ssl_enabled.

Examples:
  linesearch gencert
  linesearch gencert --host search.internal --host 10.0.0.5`,
	RunE: runGencert,
}

func init() {
	gencertCmd.Flags().StringSliceVar(&gencertHosts, "host", []string{"localhost", "127.0.0.1"}, "DNS names and IPs the certificate is valid for")
	gencertCmd.Flags().StringVar(&gencertCert, "cert", "server.crt", "Certificate output path")
	gencertCmd.Flags().StringVar(&gencertKey, "key", "server.key", "Key output path")
	rootCmd.AddCommand(gencertCmd)
}

func runGencert(cmd *cobra.Command, args []string) error {
	if err := tlsutil.WriteSelfSigned(gencertCert, gencertKey, gencertHosts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", gencertCert, gencertKey)
	return nil
}
