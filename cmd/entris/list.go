package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/netplay"
	"github.com/jcharra/Entris/internal/protocol"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List open games on a server",
	Long: `Shows the games on the server that still have free seats.

Examples:
  entris list
  entris list --server http://example.com:8090`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&flagServerURL, "server", "", "Server URL (default from config)")
}

// serverClient builds a client for the configured or flagged server.
func serverClient() (*netplay.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	url := serverURL(cfg)
	if url == "" {
		return nil, errors.New("no server url configured")
	}
	return netplay.NewClient(url, cfg.Client.RequestTimeout), nil
}

// serverURL resolves the server: flag, environment, then config.
func serverURL(cfg config.Config) string {
	if flagServerURL != "" {
		return flagServerURL
	}
	if v, ok := os.LookupEnv(config.EnvServerURL); ok && v != "" {
		return v
	}
	return cfg.Client.ServerURL
}

func runList(cmd *cobra.Command, _ []string) error {
	client, err := serverClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	games, err := client.List(ctx)
	if err != nil {
		return err
	}

	if len(games) == 0 {
		fmt.Println("No open games.")
		fmt.Println()
		fmt.Println("Run 'entris play --create' to start one.")
		return nil
	}

	fmt.Printf("Open games on %s:\n\n", client.BaseURL())
	fmt.Printf("  %-8s  %-7s  %-6s  %-10s  %s\n", "ID", "Seats", "Board", "Age", "Players")
	fmt.Printf("  %-8s  %-7s  %-6s  %-10s  %s\n", "--", "-----", "-----", "---", "-------")

	for _, g := range games {
		fmt.Printf("  %-8d  %-7s  %-6s  %-10s  %s\n",
			g.GameID,
			fmt.Sprintf("%d/%d", len(g.Players), g.Size),
			g.Dimensions,
			age(g.Timestamp),
			playerNames(g.Players),
		)
	}

	fmt.Println()
	fmt.Println("Run 'entris play --join <id>' to join a game.")
	return nil
}

func playerNames(players []protocol.Player) string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.ScreenName
	}
	return strings.Join(names, ", ")
}

func age(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Since(time.Unix(unix, 0)).Round(time.Second).String()
}
