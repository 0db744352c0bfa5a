package cmd

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/logger"
	"github.com/spigell/resume-screener/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored applications for a job to an xlsx file",
	Run: func(cmd *cobra.Command, _ []string) {
		export(cmd)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("job", "", "job title to export applications for")
	exportCmd.Flags().StringP("out", "o", "", "output file (default is <job>.xlsx)")
	exportCmd.MarkFlagRequired("job")
}

func export(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	job, _ := cmd.Flags().GetString("job")
	out, _ := cmd.Flags().GetString("out")
	if strings.TrimSpace(out) == "" {
		out = exportFilename(job)
	}

	db, err := openStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer db.Close()

	apps, err := db.ListByJob(ctx, job)
	if err != nil {
		logger.Fatal("listing applications", zap.Error(err))
	}

	f, err := os.Create(out)
	if err != nil {
		logger.Fatal("creating export file", zap.Error(err))
	}
	defer f.Close()

	if err := store.ExportXLSX(f, apps); err != nil {
		logger.Fatal("writing export", zap.Error(err))
	}

	logger.Info("applications exported",
		zap.String("job_title", job),
		zap.Int("count", len(apps)),
		zap.String("filename", out),
	)
}

func exportFilename(job string) string {
	name := strings.Join(strings.Fields(strings.ToLower(job)), "_")
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "applications"
	}
	return name + ".xlsx"
}
