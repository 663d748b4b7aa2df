package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/threadrelay/internal/assistant"
	"github.com/ashureev/threadrelay/internal/config"
	"github.com/ashureev/threadrelay/internal/domain"
	"github.com/ashureev/threadrelay/internal/store"
)

const sessionCmdTimeout = 15 * time.Second

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset a chat's thread binding",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <chat-id>",
		Short: "Print the thread bound to a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, bindings store.BindingStore) error {
				return sessionGet(ctx, cmd, bindings, domain.ChatID(args[0]))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <chat-id>",
		Short: "Forget a chat's thread, as /restart does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, bindings store.BindingStore) error {
				return sessionReset(ctx, cmd, bindings, remoteThreads(), domain.ChatID(args[0]))
			})
		},
	})
	return cmd
}

func withStore(parent context.Context, fn func(context.Context, store.BindingStore) error) error {
	newLogger(slog.LevelWarn)

	cfg, err := config.LoadStore()
	if err != nil {
		return err
	}
	bindings, err := store.Open(cfg.Options())
	if err != nil {
		return err
	}
	defer bindings.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, sessionCmdTimeout)
	defer cancel()
	return fn(ctx, bindings)
}

// remoteThreads returns a thread manager when assistant credentials are
// configured, so a reset also deletes the remote thread.
func remoteThreads() *assistant.Threads {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil
	}
	return assistant.NewThreads(assistant.NewOpenAIClient(key, os.Getenv("OPENAI_BASE_URL")), nil)
}

func sessionGet(ctx context.Context, cmd *cobra.Command, bindings store.BindingStore, chatID domain.ChatID) error {
	lookup := bindings.Get(ctx, chatID)
	switch lookup.State {
	case store.LookupFound:
		fmt.Fprintln(cmd.OutOrStdout(), lookup.ThreadID)
		return nil
	case store.LookupAbsent:
		fmt.Fprintf(cmd.OutOrStdout(), "no thread bound to chat %s\n", chatID)
		return nil
	default:
		return fmt.Errorf("lookup chat %s: %w", chatID, lookup.Err)
	}
}

func sessionReset(ctx context.Context, cmd *cobra.Command, bindings store.BindingStore, threads *assistant.Threads, chatID domain.ChatID) error {
	lookup := bindings.Get(ctx, chatID)
	switch lookup.State {
	case store.LookupAbsent:
		fmt.Fprintf(cmd.OutOrStdout(), "no thread bound to chat %s\n", chatID)
		return nil
	case store.LookupTransportError:
		return fmt.Errorf("lookup chat %s: %w", chatID, lookup.Err)
	}

	if threads != nil {
		threads.Delete(ctx, lookup.ThreadID)
	}
	if err := bindings.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete binding for chat %s: %w", chatID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reset chat %s (thread %s)\n", chatID, lookup.ThreadID)
	return nil
}
