// Package carfile prepares raw capture files for scanning. Units write one
// capture per recording session, named <family>_<car>_<sequence>[...].dat
// and sometimes zipped. A check run wants one contiguous stream per car, so
// the session files are ordered and concatenated with the per-file preamble
// stripped from every file after the first.
package carfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrNoDir reports a capture directory that does not exist.
	ErrNoDir = errors.New("capture directory does not exist")
	// ErrNoData reports a directory with no capture files for the family.
	ErrNoData = errors.New("no capture files for unit")
)

// MergedSuffix names the per-car output of a merge. Merged files never
// match the family selection pattern, so reruns do not fold them back in.
const MergedSuffix = "_mergedata.dat"

// Merge collects the family's capture files under dir, unzips archived
// ones in place, groups them by car number and concatenates each group in
// session order into <car>_mergedata.dat at the top of dir. Every file
// after a group's first loses its leading stride bytes, the per-file
// capture preamble. Stale merged outputs are deleted first. Returns the
// merged file paths sorted by car.
func Merge(dir, family string, stride int) ([]string, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoDir, dir)
	}
	if stride < 0 {
		return nil, fmt.Errorf("negative preamble stride %d", stride)
	}

	if err := removeStaleMerges(dir); err != nil {
		return nil, err
	}

	files, err := collect(dir, family)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s under %s", ErrNoData, family, dir)
	}

	byCar := groupByCar(files)
	if len(byCar) == 0 {
		return nil, fmt.Errorf("%w: %s under %s", ErrNoData, family, dir)
	}

	cars := make([]string, 0, len(byCar))
	for car := range byCar {
		cars = append(cars, car)
	}
	sort.Strings(cars)

	merged := make([]string, 0, len(cars))
	for _, car := range cars {
		out := filepath.Join(dir, car+MergedSuffix)
		if err := concat(out, byCar[car], stride); err != nil {
			return nil, fmt.Errorf("merge car %s: %w", car, err)
		}
		log.Printf("merged %d %s files for car %s into %s", len(byCar[car]), family, car, out)
		merged = append(merged, out)
	}
	return merged, nil
}

func removeStaleMerges(dir string) error {
	stale, err := filepath.Glob(filepath.Join(dir, "*"+MergedSuffix))
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale merge %s: %w", path, err)
		}
		log.Printf("removed stale merge %s", path)
	}
	return nil
}

// collect walks dir for files whose name contains the lowercased family
// name, extracting matching .dat.zip archives next to themselves.
func collect(dir, family string) ([]string, error) {
	needle := strings.ToLower(family)
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if !strings.Contains(name, needle) {
			return nil
		}
		switch {
		case strings.HasSuffix(name, ".dat.zip"):
			extracted, err := extract(path, needle)
			if err != nil {
				return fmt.Errorf("extract %s: %w", path, err)
			}
			for _, p := range extracted {
				add(p)
			}
		case strings.HasSuffix(name, ".dat"):
			add(path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// extract unpacks the archive into its own directory and returns the
// family's .dat members.
func extract(zipPath, needle string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	destDir := filepath.Dir(zipPath)
	var out []string
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive member %q escapes %s", f.Name, destDir)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := writeMember(f, target); err != nil {
			return nil, err
		}
		name := strings.ToLower(filepath.Base(target))
		if strings.Contains(name, needle) && strings.HasSuffix(name, ".dat") {
			out = append(out, target)
		}
	}
	return out, nil
}

func writeMember(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// groupByCar buckets capture paths by the car number token of their base
// name and orders each bucket by the session sequence token. Names that do
// not carry both tokens are skipped with a warning rather than failing the
// whole merge.
func groupByCar(files []string) map[string][]string {
	type entry struct {
		path string
		seq  string
	}
	groups := make(map[string][]entry)
	for _, path := range files {
		parts := strings.Split(filepath.Base(path), "_")
		if len(parts) < 3 {
			log.Printf("skipping %s: name lacks car and sequence tokens", path)
			continue
		}
		groups[parts[1]] = append(groups[parts[1]], entry{path: path, seq: parts[2]})
	}

	out := make(map[string][]string, len(groups))
	for car, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].seq != entries[j].seq {
				return entries[i].seq < entries[j].seq
			}
			return entries[i].path < entries[j].path
		})
		paths := make([]string, len(entries))
		for i, e := range entries {
			paths[i] = e.path
		}
		out[car] = paths
	}
	return out
}

// concat writes the group to out, first file verbatim, later files minus
// their leading stride bytes.
func concat(out string, paths []string, stride int) error {
	w, err := os.Create(out)
	if err != nil {
		return err
	}

	for i, path := range paths {
		if err := appendFile(w, path, i > 0, stride); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func appendFile(w io.Writer, path string, skipPreamble bool, stride int) error {
	r, err := os.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	if skipPreamble && stride > 0 {
		if _, err := r.Seek(int64(stride), io.SeekStart); err != nil {
			return err
		}
	}
	_, err = io.Copy(w, r)
	return err
}
