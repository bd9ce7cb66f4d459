package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirklandnuts/ontology-batch-query/types"
)

// WriteFile writes the report next to its final name and renames it into
// place once complete, so a failed write never leaves a truncated report.
func WriteFile(path string, results types.ResultSet, opts Options) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = WriteCSV(tmp, results, opts); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving report into place: %w", err)
	}
	return nil
}
