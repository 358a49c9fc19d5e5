package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	rxreader "github.com/menta2k/rx-reader"
	"github.com/menta2k/rx-reader/internal/config"
	"github.com/menta2k/rx-reader/internal/render"
	"github.com/menta2k/rx-reader/internal/utils"
	"github.com/menta2k/rx-reader/pkg/types"
)

var (
	readOutDir   string
	readPasses   int
	readVerifyBy string
	readGrouping string
)

var readCmd = &cobra.Command{
	Use:   "read <image|url|dir>",
	Short: "Read a prescription image, URL or directory of images",
	Long: `Read one prescription and print every stage of the run: the model
interpretations, the medicine name groups, the verification results and the
final report.

When given a directory, every supported image in it is read in turn. With
--out, a <name>_report.txt file is written for each image.

Examples:
  rxreader read prescription.jpg
  rxreader read https://example.com/rx.jpg -o json
  rxreader read ./scans --out ./reports --verify-by name`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyReadFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		format, err := render.ParseFormat(outputFormat)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		gen, err := newGenerator(ctx, cfg, logger)
		if err != nil {
			return err
		}
		reader, err := rxreader.NewWithConfig(gen, cfg.ProcessingConfig(), cfg.PipelineOptions(), logger)
		if err != nil {
			return err
		}

		if readOutDir != "" {
			if err := os.MkdirAll(readOutDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		source := args[0]
		if utils.DirExists(source) {
			return readDirectory(cmd, reader, source, format, logger)
		}

		result, err := reader.ReadSource(ctx, source)
		if result != nil {
			if outErr := emit(cmd, utils.NewReportNamer(""), source, result, format, logger); outErr != nil {
				return outErr
			}
		}
		return err
	},
}

func init() {
	readCmd.Flags().StringVar(&readOutDir, "out", "", "directory for <name>_report.txt files")
	readCmd.Flags().IntVar(&readPasses, "passes", 0, "number of interpretation passes (default from config)")
	readCmd.Flags().StringVar(&readVerifyBy, "verify-by", "", "verify per group or per name")
	readCmd.Flags().StringVar(&readGrouping, "grouping", "", "group candidates by position or similarity")
}

func applyReadFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("passes") {
		cfg.Pipeline.Passes = readPasses
	}
	if cmd.Flags().Changed("verify-by") {
		cfg.Pipeline.VerifyBy = readVerifyBy
	}
	if cmd.Flags().Changed("grouping") {
		cfg.Pipeline.Grouping = readGrouping
	}
}

func readDirectory(cmd *cobra.Command, reader *rxreader.Reader, dir string, format render.Format, logger *slog.Logger) error {
	results, err := reader.ReadDirectory(cmd.Context(), dir)
	if err != nil && len(results) == 0 {
		return err
	}

	namer := utils.NewReportNamer(dir)
	var failed int
	for _, fr := range results {
		if fr.Err != nil {
			failed++
		}
		if fr.Result == nil {
			continue
		}
		if outErr := emit(cmd, namer, fr.Path, fr.Result, format, logger); outErr != nil {
			return outErr
		}
	}
	logger.Info("directory read complete", "files", len(results), "failed", failed)

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d prescriptions failed", failed, len(results))
	}
	return nil
}

// emit prints the result and, with --out, writes its text report under a
// name from namer
func emit(cmd *cobra.Command, namer *utils.ReportNamer, source string, result *types.Result, format render.Format, logger *slog.Logger) error {
	if err := render.OutputTo(cmd.OutOrStdout(), format, result); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if readOutDir == "" {
		return nil
	}

	path := namer.Path(readOutDir, source)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if err := render.Text(f, result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("report written", "path", path)
	return nil
}
