package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcharra/Entris/internal/platform/tui"
	"github.com/jcharra/Entris/internal/storage"
)

var (
	flagScoresLimit int
	flagWinner      string
	flagClear       bool
	flagInteractive bool
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show high scores and recent matches",
	Long: `Display the best solo games and the most recent online matches
recorded in the local database.

Examples:
  entris scores
  entris scores --limit 20
  entris scores --winner alice
  entris scores -i
  entris scores --clear`,
	RunE: runScores,
}

func init() {
	scoresCmd.Flags().IntVar(&flagScoresLimit, "limit", 10, "Rows per table")
	scoresCmd.Flags().StringVar(&flagWinner, "winner", "", "Only show matches won by this screen name")
	scoresCmd.Flags().BoolVar(&flagClear, "clear", false, "Delete all solo scores")
	scoresCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "Browse the tables in the terminal UI")
}

func runScores(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening scores database: %w", err)
	}
	defer store.Close()

	if flagClear {
		if err := store.ClearScores(); err != nil {
			return err
		}
		fmt.Println("Solo scores cleared.")
		return nil
	}

	if flagInteractive {
		rt := runtimeConfig(cfg)
		_, err := tui.RunScoreboard(store, rt.ScreenW, rt.ScreenH)
		return err
	}

	if err := printSolo(store); err != nil {
		return err
	}
	fmt.Println()
	return printMatches(store)
}

func printSolo(store *storage.Store) error {
	scores, err := store.TopScores(flagScoresLimit)
	if err != nil {
		return err
	}

	fmt.Println("High Scores - Solo")
	fmt.Println()

	if len(scores) == 0 {
		fmt.Println("No scores recorded yet.")
		fmt.Println()
		fmt.Println("Play 'entris play --solo' to set the first high score!")
		return nil
	}

	fmt.Printf("  %-4s  %-12s  %-10s  %-5s  %-5s  %-6s  %s\n", "Rank", "Player", "Score", "Level", "Lines", "Mode", "Date")
	fmt.Printf("  %-4s  %-12s  %-10s  %-5s  %-5s  %-6s  %s\n", "----", "------", "-----", "-----", "-----", "----", "----")
	for i, e := range scores {
		fmt.Printf("  %-4d  %-12s  %-10d  %-5d  %-5d  %-6s  %s\n",
			i+1, e.Player, e.Score, e.Level, e.Lines, e.Difficulty, e.CreatedAt.Format("2006-01-02 15:04"))
	}

	stats, err := store.GetStats()
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("Games: %d  Best: %d  Average: %.0f  Lines: %d  Best level: %d\n",
		stats.GamesCount, stats.HighScore, stats.AvgScore, stats.TotalLines, stats.BestLevel)
	return nil
}

func printMatches(store *storage.Store) error {
	var (
		matches []storage.MatchRecord
		err     error
		title   = "Recent Matches"
	)
	if flagWinner != "" {
		matches, err = store.MatchesWonBy(flagWinner, flagScoresLimit)
		title = "Matches won by " + flagWinner
	} else {
		matches, err = store.RecentMatches(flagScoresLimit)
	}
	if err != nil {
		return err
	}

	fmt.Println(title)
	fmt.Println()

	if len(matches) == 0 {
		fmt.Println("No matches recorded yet.")
		return nil
	}

	fmt.Printf("  %-8s  %-12s  %-10s  %-8s  %-16s  %s\n", "Game", "Winner", "Result", "Length", "Started", "Players")
	fmt.Printf("  %-8s  %-12s  %-10s  %-8s  %-16s  %s\n", "----", "------", "------", "------", "-------", "-------")
	for _, m := range matches {
		winner := m.Winner
		if winner == "" {
			winner = "-"
		}
		fmt.Printf("  %-8d  %-12s  %-10s  %-8s  %-16s  %s\n",
			m.GameID, winner, m.EndReason, m.Duration.String(),
			m.StartedAt.Format("2006-01-02 15:04"), strings.Join(m.Players, ", "))
	}
	return nil
}
