package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/catalog"
	"github.com/spigell/resume-screener/internal/document"
	"github.com/spigell/resume-screener/internal/logger"
	"github.com/spigell/resume-screener/internal/screening"
)

const exitHalted = 2

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen a resume against a job from the catalog",
	Run: func(cmd *cobra.Command, _ []string) {
		screen(cmd)
	},
}

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringP("resume", "r", "", "resume file (pdf, docx or txt)")
	screenCmd.Flags().String("job", "", "job title from the catalog. Asked interactively when omitted")
	screenCmd.Flags().Bool("fail-on-halt", false, "exit with a non-zero code when the run halts")
	screenCmd.MarkFlagRequired("resume")
}

func screen(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-screener", zap.String("version", version))

	jobs, err := catalog.Load(config.Catalog)
	if err != nil {
		logger.Fatal("loading job catalog", zap.Error(err), zap.String("path", config.Catalog))
	}
	logger.Info("job catalog loaded", zap.Int("count", jobs.Len()))

	resumePath, _ := cmd.Flags().GetString("resume")
	resume, err := readResume(resumePath)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}

	jobTitle, _ := cmd.Flags().GetString("job")
	if strings.TrimSpace(jobTitle) == "" && interactive() {
		jobTitle, err = selectJob(jobs)
		if err != nil {
			logger.Fatal("selecting a job", zap.Error(err))
		}
	}

	c, err := buildComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}
	defer c.Close()

	state := c.pipeline.Run(ctx, screening.Input{
		JobTitle: jobTitle,
		Resume:   resume,
		Catalog:  jobs,
	})

	pretty, err := json.MarshalIndent(state.Result(), "", "  ")
	if err != nil {
		logger.Fatal("encoding result", zap.Error(err))
	}
	fmt.Println(string(pretty))

	if state.Halted {
		logger.Warn("screening halted", zap.String("summary", state.String()))
		if failOnHalt, _ := cmd.Flags().GetBool("fail-on-halt"); failOnHalt {
			c.Close()
			os.Exit(exitHalted)
		}
	}
}

func readResume(path string) (document.Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return document.Document{}, errors.New("resume path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, err
	}
	name := filepath.Base(path)
	return document.Document{
		Filename: name,
		Format:   document.FormatFromFilename(name),
		Content:  content,
	}, nil
}

func interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func selectJob(jobs catalog.Catalog) (string, error) {
	titles := jobs.Titles()
	if len(titles) == 0 {
		return "", catalog.ErrEmptyCatalog
	}

	prompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: titles,
		Size:  10,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(titles[index]), strings.ToLower(strings.TrimSpace(input)))
		},
	}

	_, title, err := prompt.Run()
	return title, err
}
