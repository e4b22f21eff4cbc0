package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sozercan/recyclens/apimodels"
	"github.com/sozercan/recyclens/internal/client"
	"github.com/sozercan/recyclens/internal/sanitize"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ask a running server where an item goes",
	Long: `Analyze sends a photo and/or a description of an item to a recyclens
server and prints the recommendation. At least one of --image or --context
is required, and --location always is.

By default the combined endpoint is used and progress is shown as the
frontend shows it. With --staged the vision and recyclability endpoints
are called one after the other.`,
	Example: `  recyclens analyze --image bottle.jpg --location "Ithaca, NY"
  recyclens analyze --context "greasy pizza box" --location 12203`,
	RunE: func(cmd *cobra.Command, args []string) error {
		imagePath, _ := cmd.Flags().GetString("image")
		userContext, _ := cmd.Flags().GetString("context")
		location, _ := cmd.Flags().GetString("location")
		backend, _ := cmd.Flags().GetString("backend")
		staged, _ := cmd.Flags().GetBool("staged")
		asJSON, _ := cmd.Flags().GetBool("json")

		if !apimodels.HasLocation(location) {
			return errors.New("--location is required")
		}
		if imagePath == "" && strings.TrimSpace(userContext) == "" {
			return errors.New("either --image or --context is required")
		}
		if backend == "" {
			backend = cfg.Client.BackendURL
		}

		req := apimodels.AnalyzeRequest{Location: location, Context: userContext}
		if imagePath != "" {
			image, err := readImage(imagePath)
			if err != nil {
				return err
			}
			req.Image = image
		}

		api := client.NewAPI(backend, client.DefaultTimeout)
		progress := cmd.ErrOrStderr()

		var (
			result *apimodels.AnalyzeResponse
			err    error
		)
		if staged {
			result, err = analyzeStaged(cmd.Context(), api, req, progress)
		} else {
			result, err = analyzeCombined(cmd.Context(), api, req, progress)
		}
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		renderResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func analyzeCombined(ctx context.Context, api *client.API, req apimodels.AnalyzeRequest, progress io.Writer) (*apimodels.AnalyzeResponse, error) {
	hook := client.NewHook(api)
	hook.OnStage(func(s client.Stage) {
		if label := stageLabel(s, req.Image != ""); label != "" {
			fmt.Fprintln(progress, label)
		}
	})

	result, err := hook.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	// Nothing to geocode in a terminal.
	if err := hook.Complete(); err != nil {
		return nil, err
	}
	return result, nil
}

func analyzeStaged(ctx context.Context, api *client.API, req apimodels.AnalyzeRequest, progress io.Writer) (*apimodels.AnalyzeResponse, error) {
	var visionResult *apimodels.VisionResult
	if req.Image != "" {
		fmt.Fprintln(progress, stageLabel(client.StageAnalyzingVision, true))
		v, err := api.Vision(ctx, req.Image)
		if err != nil {
			return nil, err
		}
		visionResult = v
		fmt.Fprintf(progress, "Identified: %s (%s)\n", v.PrimaryMaterial, v.Category)
	}

	fmt.Fprintln(progress, stageLabel(client.StageAnalyzingRecyclability, true))
	result, err := api.Recyclability(ctx, visionResult, req.Location, req.Context)
	if err != nil {
		return nil, err
	}
	return sanitize.Response(result)
}

func stageLabel(s client.Stage, hasImage bool) string {
	switch s {
	case client.StageAnalyzingVision:
		if hasImage {
			return "Analyzing image..."
		}
		return "Reading description..."
	case client.StageQueryingRAG:
		return "Checking local regulations..."
	case client.StageAnalyzingRecyclability:
		return "Determining recyclability..."
	case client.StageComplete:
		return "Done."
	}
	return ""
}

// readImage loads a photo and encodes it as a data URL.
func readImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%s does not look like an image (%s)", path, mimeType)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func init() {
	analyzeCmd.Flags().String("image", "", "path to a photo of the item")
	analyzeCmd.Flags().String("context", "", "description of the item")
	analyzeCmd.Flags().String("location", "", "city, state or ZIP code")
	analyzeCmd.Flags().String("backend", "", "server base URL (overrides BACKEND_URL)")
	analyzeCmd.Flags().Bool("staged", false, "call the vision and recyclability endpoints separately")
	analyzeCmd.Flags().Bool("json", false, "print the result as JSON")

	rootCmd.AddCommand(analyzeCmd)
}
