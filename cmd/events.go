/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/videotube/accounts/internal/events"
	"github.com/videotube/accounts/internal/mq"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect account events",
}

// eventsWatchCmd tails the account event channel and logs each event.
var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to the account event channel and log events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadInfraConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return fmt.Errorf("mq provider %q does not carry events", cfg.MQ.Provider)
		}
		defer broker.Close()

		logger.Info("watching account events", slog.String("channel", cfg.MQ.Channel))
		err = broker.Subscribe(ctx, cfg.MQ.Channel, func(ctx context.Context, msg mq.Message) error {
			event, err := events.Decode(msg)
			if err != nil {
				logger.Warn("dropping undecodable event", slog.String("message_id", msg.ID), slog.Any("error", err))
				return nil
			}
			logger.Info("account event",
				slog.String("type", event.Type),
				slog.String("user_id", event.UserID),
				slog.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
