package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrshanahan/notes-service/internal/events"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Log note lifecycle events from the message broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		consumer := events.NewConsumer(cfg.ConsumerConfig(), events.NewNoteEventHandler(logger), logger)
		logger.Info("consuming note events", "exchange", cfg.Events.Exchange, "queue", cfg.Events.Queue)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", "err", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
