package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/logger"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Show the screening stages and their configuration",
	Run: func(_ *cobra.Command, _ []string) {
		describeStages()
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}

func describeStages() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	c, err := buildComponents(context.Background(), config, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}
	defer c.Close()

	pretty, _ := json.MarshalIndent(c.pipeline.Describe(), "", "  ")
	fmt.Println(string(pretty))
}
