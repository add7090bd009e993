// Command agentsim connects simulated agent nodes to the mesh, submits a
// scripted round of reports and prints the learning broadcast back.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/mesh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	meshURL   string
	agents    []string
	rounds    int
	listenFor time.Duration
)

func main() {
	root := &cobra.Command{
		Use:          "agentsim",
		Short:        "Drive simulated agents against a collective mesh",
		SilenceUsage: true,
		RunE:         run,
	}
	root.Flags().StringVar(&meshURL, "url", "ws://localhost:8080/v1/mesh", "mesh websocket endpoint")
	root.Flags().StringSliceVar(&agents, "agents", []string{"host-1", "server-1", "kitchen-1"}, "agent ids to connect")
	root.Flags().IntVar(&rounds, "rounds", 4, "report rounds per agent")
	root.Flags().DurationVar(&listenFor, "listen", 3*time.Second, "how long to print broadcasts after the last report")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	clients := make([]*mesh.Client, 0, len(agents))
	for _, id := range agents {
		c, err := mesh.Dial(ctx, meshURL, id)
		if err != nil {
			return err
		}
		defer c.Close()
		clients = append(clients, c)
	}

	var outMu sync.Mutex
	out := cmd.OutOrStdout()
	var g errgroup.Group
	for _, c := range clients {
		g.Go(func() error {
			for {
				msg, err := c.Receive(listenFor)
				if err != nil {
					// a read timeout ends the listen window
					return nil
				}
				outMu.Lock()
				fmt.Fprintf(out, "%-10s <- %-20s %s\n", c.AgentID(), msg.Type, compact(msg.Learning))
				outMu.Unlock()
			}
		})
	}

	for round := range rounds {
		for i, c := range clients {
			for _, env := range script(round, i, agents) {
				if err := c.Submit(env); err != nil {
					return fmt.Errorf("%s: submit: %w", c.AgentID(), err)
				}
				logger.Debug("submitted", zap.String("agent_id", c.AgentID()), zap.String("kind", string(env.Kind)))
			}
		}
	}

	return g.Wait()
}

// script is the set of reports agent i files in a round. Every agent reports
// the same success so the pattern promotes after a few rounds.
func script(round, i int, team []string) []domain.Envelope {
	now := time.Now().UTC()
	satisfaction := 0.75 + 0.05*float64((round+i)%4)
	envs := []domain.Envelope{
		{
			Kind: domain.KindCustomerInteraction,
			Context: map[string]any{
				"situation":  "dinner_service",
				"customerId": fmt.Sprintf("guest-%d", i),
				"items":      []string{"ribeye", "merlot"},
				"approach":   "recommend_pairing",
			},
			Outcome:   map[string]any{"satisfaction": satisfaction},
			Timestamp: &now,
		},
		{
			Kind:      domain.KindSuccessPattern,
			Context:   map[string]any{"action": "offer_dessert_menu_early", "conditions": map[string]any{"daypart": "evening"}},
			Outcome:   map[string]any{"upsell": true},
			Timestamp: &now,
		},
		{
			Kind: domain.KindEmotionalRead,
			Emotion: map[string]any{
				"detected":      "frustrated",
				"response":      "acknowledge_and_expedite",
				"effectiveness": satisfaction,
			},
			Timestamp: &now,
		},
	}
	if i == 0 {
		envs = append(envs,
			domain.Envelope{
				Kind: domain.KindCrisisHandled,
				Context: map[string]any{
					"crisisType": "kitchen_backlog",
					"severity":   "high",
					"duration":   20 - round,
					"resolved":   true,
					"actions":    []string{"comp_appetizers", "pause_seating"},
				},
				Timestamp: &now,
			},
			domain.Envelope{
				Kind: domain.KindCollaborativeSolution,
				Context: map[string]any{
					"agents": team,
					"task":   "large_party",
				},
				Outcome:   map[string]any{"success": true, "effectiveness": 0.9},
				Timestamp: &now,
			},
		)
	}
	return envs
}

func compact(raw json.RawMessage) string {
	const limit = 160
	s := string(raw)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
