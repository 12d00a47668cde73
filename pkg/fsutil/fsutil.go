// Package fsutil manages the on-disk layout a Context owns: a workdir with
// images/ and containers/ subtrees, and the per-container directory created
// for a container that requests the "filesystem" capability.
package fsutil

import (
	"os"

	"github.com/project-ocre/ocre/pkg/ocreerr"
)

const (
	imagesDir     = "images"
	containersDir = "containers"
	dirMode       = 0o755
)

// EnsureWorkdir creates workdir/images and workdir/containers if they don't
// already exist, and removes any stale per-container directories left over
// from a previous run under workdir/containers — a Context starts with no
// containers registered, so anything there is orphaned.
func EnsureWorkdir(workdir string) error {
	if workdir == "" {
		return ocreerr.InvalidArgumentf("working directory must not be empty")
	}

	if err := os.MkdirAll(workdir, dirMode); err != nil {
		return ocreerr.IoErrorf("create working directory %q: %w", workdir, err)
	}
	if err := os.MkdirAll(join(workdir, imagesDir), dirMode); err != nil {
		return ocreerr.IoErrorf("create images directory under %q: %w", workdir, err)
	}

	containersPath := join(workdir, containersDir)
	if err := os.RemoveAll(containersPath); err != nil {
		return ocreerr.IoErrorf("purge stale containers directory under %q: %w", workdir, err)
	}
	if err := os.MkdirAll(containersPath, dirMode); err != nil {
		return ocreerr.IoErrorf("create containers directory under %q: %w", workdir, err)
	}

	return nil
}

// ImagePath returns the path an image named name resolves to under workdir.
func ImagePath(workdir, name string) string {
	return join(workdir, imagesDir, name)
}

// CreateContainerDir creates and returns the per-container working
// directory for id under workdir/containers.
func CreateContainerDir(workdir, id string) (string, error) {
	dir := join(workdir, containersDir, id)
	if err := os.Mkdir(dir, dirMode); err != nil {
		return "", ocreerr.IoErrorf("create container working directory %q: %w", dir, err)
	}
	return dir, nil
}

// RemoveContainerDir removes a per-container working directory and
// everything under it.
func RemoveContainerDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return ocreerr.IoErrorf("remove container working directory %q: %w", dir, err)
	}
	return nil
}

func join(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "/" + p
	}
	return out
}
