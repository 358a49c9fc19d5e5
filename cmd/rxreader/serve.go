package main

import (
	"github.com/spf13/cobra"

	rxreader "github.com/menta2k/rx-reader"
	"github.com/menta2k/rx-reader/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prescription upload server",
	Long: `Start the upload server.

The server provides:
  - GET  /          upload form
  - POST /read      read an uploaded prescription and show the result
  - POST /api/read  the same, returning JSON
  - GET  /health    basic server health check

Uploads are sent as multipart form data in the "prescription" field.

Examples:
  rxreader serve                    # Start on 127.0.0.1:8501
  rxreader serve --port 3000        # Start on custom port
  rxreader serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate(); err != nil {
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

		srv, err := server.New(server.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			Reader:         reader,
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().IntVar(&servePort, "port", 8501, "Port to listen on")
}
