package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/server"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Query server status or a specific session",
	Long: `Queries the server for session information.
If no session-id is provided, lists all sessions.
If session-id is provided, shows detailed state for that session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

var statusClient = &http.Client{Timeout: 10 * time.Second}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listSessions(fmt.Sprintf("%s/api/v1/sessions", serverURL))
	}
	sessionID := args[0]
	return getSessionStatus(fmt.Sprintf("%s/api/v1/sessions/%s", serverURL, sessionID), sessionID)
}

func getJSON(url string, v any) (int, error) {
	resp, err := statusClient.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listSessions(url string) error {
	var sessions []server.SessionSummary
	if _, err := getJSON(url, &sessions); err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("Found %d session(s):\n\n", len(sessions))
	for _, s := range sessions {
		fmt.Printf("Session ID: %s\n", s.ID)
		fmt.Printf("  State: %s\n", s.State)
		fmt.Printf("  Goal: %s\n", s.Goal)
		fmt.Printf("  Generation: %d\n", s.Generation)
		if s.BestX != nil && s.BestY != nil {
			fmt.Printf("  Best: x=%d f(x)=%g\n", *s.BestX, *s.BestY)
		}
		fmt.Println()
	}
	return nil
}

func getSessionStatus(url, sessionID string) error {
	var status server.SessionResponse
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Session: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Printf("Created: %s\n", status.CreatedAt.Format(time.RFC3339))
	fmt.Println()

	cfg := status.Config
	fmt.Println("Configuration:")
	fmt.Printf("  f(x) = %g + %g*x + %g*x^2 + %g*x^3\n", cfg.A, cfg.B, cfg.C, cfg.D)
	fmt.Printf("  Domain: [%d, %d] (%d bits)\n", cfg.MinX, cfg.MaxX, status.GeneLength)
	fmt.Printf("  Population: %d\n", cfg.PopSize)
	fmt.Printf("  Mutation rate: %g\n", cfg.MutationRate)
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Goal: %s\n", status.Goal)
	fmt.Printf("  Generation: %d\n", status.Generation)
	if status.Best != nil {
		fmt.Printf("  Best: x=%d f(x)=%g\n", status.Best.X, status.Best.Y)
	}
	fmt.Printf("  Mean: %.2f (sd %.2f)\n", status.Stats.Mean, status.Stats.StdDev)
	fmt.Printf("  Unchanged steps: %d\n", status.Stability)

	if status.LastError != "" {
		fmt.Printf("\nError: %s\n", status.LastError)
	}
	return nil
}
