package main

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/config"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/database"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/journal"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRebuildStatsCommand() *cobra.Command {
	var userID uint
	cmd := &cobra.Command{
		Use:   "rebuild-stats",
		Short: "Recompute the zen_stats cache from daily entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.LoadStorage(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(appConfig.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer database.Close(db) //nolint:errcheck

			journalService, err := journal.NewService(journal.ServiceConfig{
				Database:   db,
				IDProvider: journal.NewUUIDProvider(),
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var rebuilt int
			if userID != 0 {
				rebuilt, err = journalService.RebuildStats(ctx, userID)
			} else {
				rebuilt, err = journalService.RebuildAllStats(ctx)
			}
			if err != nil {
				return err
			}
			logger.Info("stat rebuild finished", zap.Uint("user_id", userID), zap.Int("rows", rebuilt))
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d stat rows\n", rebuilt)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "Only rebuild this user's rows (default: all users)")
	return cmd
}
