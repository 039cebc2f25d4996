package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcharra/Entris/internal/netplay"
	"github.com/jcharra/Entris/internal/platform/tui"
	"github.com/jcharra/Entris/internal/storage"
)

var (
	flagSSHAddr     string
	flagHostKey     string
	flagIdleTimeout time.Duration
)

var sshCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Start an SSH server for remote play",
	Long: `Start an SSH server that allows users to connect and play.

Each SSH connection gets its own session with the game menu. The SSH user
name is the screen name. Solo scores are stored per server, so all users
share the same leaderboard. Online play goes to the configured server
unless --offline is given.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.entris/host_key

Examples:
  entris ssh                            # Listen on :23234 with auto-generated key
  entris ssh --addr :2222               # Listen on port 2222
  entris ssh --host-key ./my_host_key   # Use specific host key
  entris ssh --server http://localhost:8090

Users can connect with:
  ssh localhost -p 23234`,
	RunE: runSSH,
}

func init() {
	def := tui.DefaultSSHServerConfig()
	sshCmd.Flags().StringVar(&flagSSHAddr, "addr", def.Address, "SSH server address (host:port)")
	sshCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	sshCmd.Flags().DurationVar(&flagIdleTimeout, "idle-timeout", def.IdleTimeout, "Idle time before disconnecting")
	sshCmd.Flags().StringVar(&flagServerURL, "server", "", "Server URL for online play (default from config)")
	sshCmd.Flags().BoolVar(&flagOffline, "offline", false, "Hide online play")
}

func runSSH(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, "entris-ssh", cfg)

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Warn("could not open scores database", "error", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	var client *netplay.Client
	if url := serverURL(cfg); !flagOffline && url != "" {
		client = netplay.NewClient(url, cfg.Client.RequestTimeout)
	}

	server, err := tui.NewSSHServer(tui.SSHServerConfig{
		Address:     flagSSHAddr,
		HostKeyPath: flagHostKey,
		IdleTimeout: flagIdleTimeout,
	}, cfg, store, client, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting Entris SSH server on %s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")
	return server.ListenAndServe(ctx)
}
