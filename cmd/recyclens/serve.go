package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sozercan/recyclens/internal/analyzer"
	"github.com/sozercan/recyclens/internal/config"
	"github.com/sozercan/recyclens/internal/llm"
	"github.com/sozercan/recyclens/internal/rag"
	"github.com/sozercan/recyclens/internal/server"
	"github.com/sozercan/recyclens/internal/vision"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP API",
	Long: `Serve exposes the analysis pipeline over HTTP:

  POST /api/analyze                 image and/or context in one call
  POST /api/analyze/vision          classify an image only
  POST /api/analyze/recyclability   recommend a bin from a vision result or context
  GET  /api/health                  liveness and retrieval service status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Server.Port = port
		}
		if dir, _ := cmd.Flags().GetString("static"); dir != "" {
			cfg.Server.StaticDir = dir
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := buildServer(ctx, cfg)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}

func buildServer(ctx context.Context, cfg *config.Config) (*server.Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	visionProvider, err := llm.NewProvider(ctx, cfg.Vision.Provider, cfg, cfg.OpenAI.VisionModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision provider: %w", err)
	}
	reasoningProvider, err := llm.NewProvider(ctx, cfg.Reasoning.Provider, cfg, cfg.OpenAI.ReasoningModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning provider: %w", err)
	}

	regulations := rag.NewClient(cfg.RAG.ServiceURL, cfg.RAG.Timeout())
	if !regulations.Configured() {
		log.Warn().Msg("RAG_SERVICE_URL not set, recommendations will not use local regulation documents")
	}

	log.Info().
		Str("vision", visionProvider.Name()).
		Str("reasoning", reasoningProvider.Name()).
		Bool("rag", regulations.Configured()).
		Msg("pipeline configured")

	return server.New(
		cfg.Server,
		vision.New(visionProvider),
		analyzer.New(regulations, reasoningProvider),
		regulations,
	), nil
}

func init() {
	serveCmd.Flags().String("port", "", "port to listen on (overrides SERVER_PORT)")
	serveCmd.Flags().String("static", "", "directory of frontend assets to serve at / (overrides SERVER_STATIC_DIR)")

	rootCmd.AddCommand(serveCmd)
}
