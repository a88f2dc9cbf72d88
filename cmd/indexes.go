/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/videotube/accounts/internal/db"
	"github.com/videotube/accounts/internal/store"
)

// indexesCmd creates the MongoDB indexes the account store relies on.
var indexesCmd = &cobra.Command{
	Use:   "mongo-indexes",
	Short: "Create MongoDB indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadInfraConfig()
		if err != nil {
			return err
		}

		client, database, err := db.OpenMongo(cmd.Context(), cfg.Database.Mongo)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(cmd.Context()) }()

		if err := store.NewMongoStore(database).EnsureIndexes(cmd.Context()); err != nil {
			return err
		}
		logger.Info("mongo indexes ensured", "database", cfg.Database.Mongo.Database)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}
