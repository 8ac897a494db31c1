package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

// maxFileSize skips very large files, which are usually generated.
const maxFileSize = 500_000

var excludedDirs = map[string]struct{}{
	"target":       {},
	"build":        {},
	".git":         {},
	"node_modules": {},
}

// SourceUnits walks root and emits one unit per .rs source file, in
// deterministic walk order. The file's short hash serves as its version so
// identity stays stable while content changes are still detected.
func SourceUnits(root string) ([]analysis.Unit, error) {
	var units []analysis.Unit
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := excludedDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".rs") {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Size() > maxFileSize {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		units = append(units, analysis.Unit{
			Name:    rel,
			Version: analysis.Fingerprint(string(content))[:12],
			Source:  "file",
			Content: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}
