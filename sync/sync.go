package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Options configures a single reconcile pass.
type Options struct {
	Dir    string // local directory, must exist
	Prefix string // remote key prefix
	Src    Source
	DryRun bool // if true, report missing files without downloading
}

// Result summarises a reconcile pass.
type Result struct {
	Listed     int      // remote objects under the prefix with a usable basename
	Local      int      // entries in Dir when the pass started
	Missing    []string // basenames absent locally, sorted
	Downloaded []string // basenames written to Dir, in download order
	Bytes      int64
}

// DownloadMissing downloads every object under opts.Prefix whose basename
// is not already present in opts.Dir. Presence is decided by name only.
// The first failed download aborts the pass; earlier files stay on disk.
func DownloadMissing(ctx context.Context, opts Options) (Result, error) {
	var res Result

	if err := validateDir(opts.Dir); err != nil {
		return res, err
	}
	local, err := localNames(opts.Dir)
	if err != nil {
		return res, err
	}
	res.Local = len(local)

	objects, err := listObjects(ctx, opts.Src, opts.Prefix)
	if err != nil {
		return res, err
	}
	res.Listed = len(objects)

	pending := missingObjects(objects, local)
	for _, obj := range pending {
		res.Missing = append(res.Missing, obj.Name())
	}
	sort.Strings(res.Missing)

	log := zerolog.Ctx(ctx).With().
		Str("bucket", opts.Src.Bucket()).
		Str("prefix", opts.Prefix).
		Logger()
	log.Info().
		Int("local", res.Local).
		Int("remote", res.Listed).
		Strs("missing", res.Missing).
		Msg("reconciled listing")

	if opts.DryRun {
		return res, nil
	}

	for _, obj := range pending {
		start := time.Now()
		log.Info().Str("key", obj.Key).Str("size", humanize.IBytes(uint64(max(obj.Size, 0)))).Msg("download")

		n, err := downloadFile(ctx, opts.Src, obj, opts.Dir)
		if err != nil {
			return res, err
		}
		res.Downloaded = append(res.Downloaded, obj.Name())
		res.Bytes += n

		log.Info().
			Str("file", filepath.Join(opts.Dir, obj.Name())).
			Str("bytes", humanize.IBytes(uint64(n))).
			Dur("took", time.Since(start)).
			Msg("download complete")
	}
	return res, nil
}

// MissingSet returns the basenames of keys that are absent from local, sorted.
func MissingSet(keys []string, local map[string]struct{}) []string {
	objects := make([]Object, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, Object{Key: k})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	var names []string
	for _, obj := range missingObjects(objects, local) {
		names = append(names, obj.Name())
	}
	sort.Strings(names)
	return names
}

// missingObjects filters objects, which must be sorted by key, down to
// those whose basename is not in local. Of several keys sharing a
// basename only the first is kept.
func missingObjects(objects []Object, local map[string]struct{}) []Object {
	seen := make(map[string]struct{}, len(objects))
	var out []Object
	for _, obj := range objects {
		if obj.skip() {
			continue
		}
		name := obj.Name()
		if _, ok := local[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, obj)
	}
	return out
}

func listObjects(ctx context.Context, src Source, prefix string) ([]Object, error) {
	var objects []Object
	for obj, err := range src.List(ctx, prefix) {
		if err != nil {
			return nil, err
		}
		if obj.skip() {
			continue
		}
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func localNames(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}
	return names, nil
}

// downloadFile writes obj into dir under its basename. The body goes to a
// hidden part file first so an interrupted transfer never leaves a file
// that a later pass would treat as present.
func downloadFile(ctx context.Context, src Source, obj Object, dir string) (int64, error) {
	dst := filepath.Join(dir, obj.Name())
	f, err := os.CreateTemp(dir, "."+obj.Name()+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file for %s: %w", obj.Key, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	n, err := src.Download(ctx, obj.Key, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", tmp, cerr)
	}
	if err != nil {
		return n, err
	}

	if err := publish(tmp, dst); err != nil {
		return n, err
	}
	return n, nil
}

// publish moves tmp to dst without replacing an existing dst. A hard link
// fails atomically when dst exists; filesystems without hard links fall
// back to a check followed by a rename.
func publish(tmp, dst string) error {
	err := os.Link(tmp, dst)
	if err == nil {
		return os.Remove(tmp)
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s appeared during download: %w", dst, fs.ErrExist)
	}

	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s appeared during download: %w", dst, fs.ErrExist)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func validateDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("local directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local directory %q is not a directory", dir)
	}
	return nil
}
