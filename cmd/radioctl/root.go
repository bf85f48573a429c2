package main

import (
	"fmt"
	"strings"
	"sync"

	"indi-radio-go/internal/config"
	"indi-radio-go/pkg/database"
	"indi-radio-go/pkg/log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type commandContext struct {
	configFlag *string

	once sync.Once
	cfg  config.Config
	db   *gorm.DB
	err  error
}

// store lazily loads configuration and opens the database the first time a command needs it.
func (c *commandContext) store() (config.Config, *gorm.DB, error) {
	c.once.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		log.Init(cfg.Log.Level, "console", "")

		db, err := database.Open(cfg.Database.MySQL.DSN, database.PoolConfig{
			MaxIdleConns:    2,
			MaxOpenConns:    4,
			ConnMaxLifetime: cfg.Database.MySQL.ConnMaxLifetime,
		})
		if err != nil {
			c.err = fmt.Errorf("connect database: %w", err)
			return
		}
		c.cfg, c.db = cfg, db
	})
	return c.cfg, c.db, c.err
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "radioctl",
		Short:         "Maintenance commands for the radio metadata service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "./configs/config.yaml", "Configuration file path")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newBackfillUsernamesCommand(ctx))
	rootCmd.AddCommand(newImportScheduleCommand(ctx))
	return rootCmd
}
