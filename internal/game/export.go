package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportGame appends a finished game's summary to a text file.
func ExportGame(filename string, snap *Snapshot) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Room %s - finished %s\n", snap.Code, time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n")

	sb.WriteString(fmt.Sprintf("Rounds played: %d\n\nPodium:\n", snap.RoundNumber))
	for _, group := range snap.Podium {
		sb.WriteString(fmt.Sprintf("%d. %s - %d points\n", group.Position, strings.Join(group.Names, ", "), group.Score))
	}

	sb.WriteString("\nPlayers:\n")
	for _, p := range snap.Players {
		sb.WriteString(fmt.Sprintf("- %s: %d points, %d games played\n", p.Name, p.TotalScore, p.GamesPlayed))
	}
	sb.WriteString("\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
