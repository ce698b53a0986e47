package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/careswarm/careswarm"
	"github.com/careswarm/careswarm/internal/clinic"
	"github.com/careswarm/careswarm/pkg/config"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "careswarm",
		Short:         "Conversational clinic assistant service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (YAML)")

	root.AddCommand(serveCmd(), seedCmd(), chatCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("careswarm: %v", err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the clinic service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			app, err := careswarm.NewApp(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("careswarm %s serving on %s (provider=%s model=%s)",
				careswarm.Version, cfg.Server.Addr, cfg.Provider.Name, cfg.Provider.Model)
			return app.Run(ctx)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create and seed the clinic database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			store, err := clinic.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Seed(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("seeded clinic database at %s\n", cfg.Database.Path)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			fmt.Println("Connected to", serverURL, "- ctrl-d to quit")
			threadID := ""
			for {
				input, err := line.Prompt("you> ")
				if err != nil {
					// io.EOF on ctrl-d, ErrPromptAborted on ctrl-c
					fmt.Println()
					return nil
				}
				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}
				line.AppendHistory(input)

				threadID, err = sendChat(serverURL, threadID, input)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "service base URL")
	return cmd
}

// sendChat posts one message and prints the streamed response frames.
func sendChat(serverURL, threadID, content string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"message":    content,
		"session_id": threadID,
	})
	if err != nil {
		return threadID, err
	}

	resp, err := http.Post(serverURL+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return threadID, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return threadID, fmt.Errorf("server returned %s", resp.Status)
	}

	agent := ""
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var frame struct {
			Type     string `json:"type"`
			ThreadID string `json:"thread_id"`
			Agent    string `json:"agent"`
			Tool     string `json:"tool"`
			Status   string `json:"status"`
			Content  string `json:"content"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "thread_id":
			threadID = frame.ThreadID
		case "agent_event":
			fmt.Printf("  [transferred to %s]\n", frame.Agent)
		case "tool_event":
			if frame.Status == "started" {
				fmt.Printf("  [%s...]\n", frame.Tool)
			}
		case "reply":
			agent = frame.Agent
			fmt.Printf("%s> %s\n", strings.ToLower(agent), frame.Content)
		case "error":
			fmt.Fprintf(os.Stderr, "error: %s\n", frame.Error)
		}
	}
	return threadID, scanner.Err()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("careswarm", careswarm.Version)
		},
	}
}
