package main

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
	"ragchat/internal/usecase"
)

type chatOptions struct {
	sessionID string
	render    bool
}

func newChatCmd(a *app) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat [MESSAGE...]",
		Short: "Chat with the backend, one turn or interactively",
		Long: `With a message, chat sends one turn and prints the streamed answer.
Without one it starts an interactive session; type /new to start a new
conversation and /exit to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("render") {
				a.ui.markdown = opts.render
			}
			conv, err := a.conversation(cmd.Context(), opts.sessionID)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				return a.turn(cmd.Context(), conv, strings.Join(args, " "))
			}
			return a.interactive(cmd, conv)
		},
	}
	cmd.Flags().StringVarP(&opts.sessionID, "session", "s", "", "resume a stored conversation")
	cmd.Flags().BoolVar(&opts.render, "render", false, "render answers as markdown")
	return cmd
}

// conversation starts or resumes a session. A history store that cannot be
// opened is reported and the chat continues unpersisted.
func (a *app) conversation(ctx context.Context, sessionID string) (*usecase.Conversation, error) {
	store, err := a.historyStore()
	if err != nil {
		a.logger.Warn("history unavailable, transcript will not be saved", "error", err)
		a.ui.warn("history unavailable: %v", err)
		store = nil
	}
	return usecase.NewConversation(ctx, a.client, store, sessionID, a.logger)
}

func (a *app) turn(ctx context.Context, conv *usecase.Conversation, text string) error {
	a.ui.replyStart()
	reply, err := conv.Send(ctx, text, a.ui.chunk)
	if err != nil {
		if reply.Content != "" {
			a.ui.replyEnd(reply.Content)
		}
		return err
	}
	a.ui.replyEnd(reply.Content)
	return nil
}

func (a *app) interactive(cmd *cobra.Command, conv *usecase.Conversation) error {
	ctx := cmd.Context()
	a.ui.muted("session %s (/new, /exit)", conv.ID())
	if n := len(conv.Messages()); n > 0 {
		a.ui.muted("resumed with %d stored messages", n)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		a.ui.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			next, err := a.conversation(ctx, "")
			if err != nil {
				return err
			}
			conv = next
			a.ui.muted("session %s", conv.ID())
			continue
		}

		if err := a.turn(ctx, conv, line); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return err
			}
			a.logger.Debug("turn failed", "session", conv.ID(), "code", string(domain.ErrorCodeOf(err)))
			a.ui.failure(err)
		}
	}
}
