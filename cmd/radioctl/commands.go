package main

import (
	"fmt"
	"os"

	"indi-radio-go/internal/repository"
	"indi-radio-go/internal/service"

	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := ctx.store()
			if err != nil {
				return err
			}
			if err := repository.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newBackfillUsernamesCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "backfill-usernames",
		Short: "Fill in missing uploader names on audio clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := ctx.store()
			if err != nil {
				return err
			}
			svc := service.NewMaintenanceService(repository.NewAudioClipRepository(db), repository.NewUserRepository(db))
			report, err := svc.BackfillUploaderNames(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run, no changes written")
			}
			fmt.Fprintf(out, "Found:   %d\n", report.Found)
			fmt.Fprintf(out, "Updated: %d\n", report.Updated)
			fmt.Fprintf(out, "Skipped: %d\n", report.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	return cmd
}

func newImportScheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import-schedule <file.json>",
		Short: "Import a schedule JSON file without going through the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := ctx.store()
			if err != nil {
				return err
			}
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			// 离线导入不发送目录事件
			svc := service.NewScheduleService(repository.NewScheduleRepository(db), nil, cfg.Ingest.InsertBatchSize, cfg.Ingest.MaxPageSize)
			report, err := svc.Ingest(cmd.Context(), payload)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Message)
			fmt.Fprintf(out, "Processed: %d  Inserted: %d  Skipped: %d\n", report.Processed, report.Inserted, report.Skipped)
			for _, e := range report.Errors {
				fmt.Fprintln(out, "  "+e)
			}
			return nil
		},
	}
}
