package main

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/spf13/cobra"

	"linesearch/internal/client"
	"linesearch/internal/config"
	"linesearch/internal/tlsutil"
)

// clientFlags are shared by the commands that talk to a server.
type clientFlags struct {
	addr     string
	useTLS   bool
	insecure bool
	caFile   string
	timeout  time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "", "Server address (default from config)")
	cmd.Flags().BoolVar(&f.useTLS, "tls", false, "Use TLS (default from server.ssl_enabled)")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	cmd.Flags().StringVar(&f.caFile, "ca", "", "CA certificate to verify the server with")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "Per-query timeout")
}

func (f *clientFlags) client(cmd *cobra.Command, cfg config.Config) (*client.Client, error) {
	addr := f.addr
	if addr == "" {
		addr = cfg.Addr()
	}
	useTLS := cfg.Server.SSLEnabled
	if cmd.Flags().Changed("tls") {
		useTLS = f.useTLS
	}

	var tc *tls.Config
	if useTLS {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if tc, err = tlsutil.ClientConfig(f.insecure, f.caFile, host); err != nil {
			return nil, err
		}
	}
	return client.New(addr, tc, f.timeout), nil
}
