package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/catalog"
	"github.com/spigell/resume-screener/internal/logger"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the jobs in the catalog",
	Run: func(_ *cobra.Command, _ []string) {
		listJobs()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func listJobs() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	jobs, err := catalog.Load(config.Catalog)
	if err != nil {
		logger.Fatal("loading job catalog", zap.Error(err), zap.String("path", config.Catalog))
	}

	if viper.GetBool("json") {
		pretty, _ := json.MarshalIndent(jobs, "", "  ")
		fmt.Println(string(pretty))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tCOMPANY\tLOCATION")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", job.Title, dash(job.Company), dash(job.Location))
	}
	w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
