package output

import (
	"fmt"
	"os"
	"path/filepath"

	"facebridge-go/internal/types"
)

// WriteModel persists a completed face model as a vertex table so a capture
// survives the process. One row per vertex, meters, model space.
func WriteModel(outputDir string, runTimestamp string, model *types.FaceModel) error {
	if model == nil || len(model.Vertices) == 0 {
		return fmt.Errorf("refusing to write empty face model")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("%s_facemodel_%s.txt", runTimestamp, model.SessionID))
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(f, "index, x, y, z")
	for i, v := range model.Vertices {
		_, _ = fmt.Fprintf(f, "%d, %.6f, %.6f, %.6f\n", i, v.X, v.Y, v.Z)
	}
	return f.Close()
}
