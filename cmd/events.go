/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/minchat/apiserver/config"
	"github.com/minchat/apiserver/internal/mq"
	"github.com/minchat/apiserver/internal/services"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Work with the message event stream",
}

var eventsListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Subscribe to message-created events and print them",
	Long: `Subscribes to the messages.created channel on the configured broker
and prints each event to stdout. Useful for debugging fanout consumers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return fmt.Errorf("open broker failed: %w", err)
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer func() {
			_ = broker.Close()
		}()

		return broker.Subscribe(cmd.Context(), services.MessageCreatedChannel, func(ctx context.Context, msg mq.Message) error {
			fmt.Fprintf(os.Stdout, "%s %s\n", msg.ID, msg.Data)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListenCmd)
}
