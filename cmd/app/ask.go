package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/starford/atelier/internal/api"
	"github.com/starford/atelier/internal/models"
)

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Chat with the assistant of a running server",
		ArgsUsage: "[question]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "API base URL",
				Value:   "http://localhost:8080/api",
				Sources: cli.EnvVars("ATELIER_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token when the server runs in token mode",
				Sources: cli.EnvVars("ATELIER_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "user",
				Usage:   "Owner id sent as X-User-ID",
				Sources: cli.EnvVars("ATELIER_USER"),
			},
			&cli.StringFlag{Name: "project", Usage: "Project id to scope tasks, notes and sources"},
			&cli.StringFlag{Name: "sources", Usage: "Comma-separated source ids"},
			&cli.StringFlag{Name: "intent", Usage: "qa or insight (derived when empty)"},
		},
		Action: ask,
	}
}

func ask(ctx context.Context, cmd *cli.Command) error {
	client := api.NewClient(cmd.String("server"), cmd.String("token"), cmd.String("user"))
	base := api.ChatRequest{
		ProjectID: cmd.String("project"),
		SourceIDs: strings.Split(cmd.String("sources"), ","),
		Intent:    cmd.String("intent"),
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	send := func(history []models.Message) (models.Message, error) {
		req := base
		req.Messages = history
		resp, err := client.Chat(ctx, req)
		if err != nil {
			return models.Message{}, err
		}
		fmt.Println(boldCyan("Assistant: ") + resp.Message)
		if len(resp.Sources) > 0 {
			names := make([]string, len(resp.Sources))
			for i, s := range resp.Sources {
				names[i] = s.Name
			}
			fmt.Println(faint("Sources: " + strings.Join(names, ", ")))
		}
		fmt.Println()
		return models.Message{Role: models.RoleAssistant, Content: resp.Message}, nil
	}

	if q := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " ")); q != "" {
		_, err := send([]models.Message{{Role: models.RoleUser, Content: q}})
		return err
	}

	fmt.Println(boldGreen("Atelier assistant"))
	fmt.Println("Type your message and press Enter. Type 'exit' or press Ctrl+D to quit.")
	fmt.Println()

	var history []models.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			return nil
		}

		history = append(history, models.Message{Role: models.RoleUser, Content: input})
		reply, err := send(history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			history = history[:len(history)-1]
			continue
		}
		history = append(history, reply)
	}
}
