package encode

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/parxive/parx/internal/parxerr"
)

// parityDirName is excluded from encode input enumeration: it holds this
// system's own output (volumes, manifest, locks), never source data.
const parityDirName = ".parx"

// DiscoverFiles walks root and returns every regular file's absolute and
// root-relative (forward-slash, sorted) paths, skipping anything under a
// ".parx" directory.
func DiscoverFiles(root string) (absPaths, relPaths []string, err error) {
	const op = "encode.DiscoverFiles"

	type found struct{ abs, rel string }
	var files []found

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == parityDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, found{abs: path, rel: filepath.ToSlash(rel)})
		return nil
	})
	if walkErr != nil {
		return nil, nil, parxerr.New(parxerr.KindBadInput, op, walkErr)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })

	absPaths = make([]string, len(files))
	relPaths = make([]string, len(files))
	for i, f := range files {
		absPaths[i] = f.abs
		relPaths[i] = f.rel
	}
	return absPaths, relPaths, nil
}
