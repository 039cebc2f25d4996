package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/platform/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <game-id>",
	Short: "Spectate a running game",
	Long: `Connect to the server's watch stream and show every player's board
as it is uploaded.

Examples:
  entris watch 4711
  entris watch 4711 --server http://example.com:8090`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagServerURL, "server", "", "Server URL (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	gameID, err := strconv.Atoi(args[0])
	if err != nil || gameID <= 0 {
		return fmt.Errorf("invalid game id %q", args[0])
	}

	client, err := serverClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := runtimeConfig(config.Default())
	return tui.RunWatch(ctx, client, gameID, rt.ScreenW, rt.ScreenH)
}
