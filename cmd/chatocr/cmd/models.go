package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/onnx"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List model artifacts and check they are present",
	Long: `List the detector model, its labels and the tesseract data directory
as resolved inside the models directory.

With --inspect the detector model is opened with ONNX Runtime and its
inputs and outputs are printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := models.GetModelsDir(GetConfig().ModelsDir)
		listModels(cmd.OutOrStdout(), dir)

		inspect, _ := cmd.Flags().GetBool("inspect")
		if !inspect {
			return nil
		}
		path := models.GetDetectorModelPath(dir)
		if err := models.ValidateModelExists(path); err != nil {
			return err
		}
		if err := onnx.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
		return inspectModel(cmd.OutOrStdout(), path)
	},
}

// listModels prints one row per artifact and returns how many are missing.
func listModels(w io.Writer, dir string) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSTATUS\tPATH\tDESCRIPTION")
	missing := 0
	for _, m := range models.ListAvailableModels() {
		path := models.ResolveModelPath(dir, m.Type, m.Filename)
		status := "ok"
		if _, err := os.Stat(path); err != nil {
			status = "missing"
			missing++
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, status, path, m.Description)
	}
	_ = tw.Flush()
	return missing
}

func inspectModel(w io.Writer, path string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("failed to read model info: %w", err)
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", path)
	_, _ = fmt.Fprintf(w, "  inputs:\n")
	for i, in := range inputs {
		_, _ = fmt.Fprintf(w, "    [%d] %s %v (%s)\n", i, in.Name, in.Dimensions, in.DataType)
	}
	_, _ = fmt.Fprintf(w, "  outputs:\n")
	for i, out := range outputs {
		_, _ = fmt.Fprintf(w, "    [%d] %s %v (%s)\n", i, out.Name, out.Dimensions, out.DataType)
	}

	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil
	}
	defer func() { _ = meta.Destroy() }()
	if producer, err := meta.GetProducerName(); err == nil && producer != "" {
		_, _ = fmt.Fprintf(w, "  producer: %s\n", producer)
	}
	if v, err := meta.GetVersion(); err == nil {
		_, _ = fmt.Fprintf(w, "  version: %d\n", v)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().Bool("inspect", false, "open the detector model and print its inputs and outputs")
}
