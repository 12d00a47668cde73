package supervisor

import (
	"io"
	"os"

	"github.com/project-ocre/ocre/pkg/fsutil"
	"github.com/project-ocre/ocre/pkg/ipc"
	"github.com/project-ocre/ocre/pkg/library"
	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// ImageInfo describes one WASM module sitting under the Context's images/
// directory.
type ImageInfo struct {
	Name string `cbor:"1,keyasint"`
	Size int64  `cbor:"2,keyasint"`
}

// pullArgs is OpImagePull's argument shape: a name to install the image
// under, plus the local source path to read bytes from. There's no registry
// or distribution protocol here — a build step or an operator hands ocred a
// path on disk, same as pointing podman at a local OCI archive instead of a
// registry reference.
type pullArgs struct {
	Name       string `cbor:"1,keyasint"`
	SourcePath string `cbor:"2,keyasint"`
}

func (sv *Supervisor) handleImageList() ipc.Response {
	entries, err := os.ReadDir(sv.ctx.WorkingDirectory() + "/images")
	if err != nil {
		return errResponse(ocreerr.IoErrorf("list images: %w", err))
	}

	infos := make([]ImageInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ImageInfo{Name: e.Name(), Size: fi.Size()})
	}
	return okResult(infos)
}

func (sv *Supervisor) handleImagePull(req ipc.Request) ipc.Response {
	var args pullArgs
	if err := ipc.DecodeArg(req.Args, &args); err != nil {
		return errResponse(err)
	}
	if !library.IsValidName(args.Name) {
		return errResponse(ocreerr.InvalidArgumentf("invalid image name %q", args.Name))
	}

	src, err := os.Open(args.SourcePath)
	if err != nil {
		return errResponse(ocreerr.IoErrorf("open image source %q: %w", args.SourcePath, err))
	}
	defer src.Close()

	dstPath := fsutil.ImagePath(sv.ctx.WorkingDirectory(), args.Name)
	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errResponse(ocreerr.IoErrorf("create image %q: %w", dstPath, err))
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return errResponse(ocreerr.IoErrorf("write image %q: %w", dstPath, err))
	}

	return ipc.Response{Status: ipc.StatusOK}
}

func (sv *Supervisor) handleImageRemove(req ipc.Request) ipc.Response {
	var name string
	if err := ipc.DecodeArg(req.Args, &name); err != nil {
		return errResponse(err)
	}

	path := fsutil.ImagePath(sv.ctx.WorkingDirectory(), name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errResponse(ocreerr.NotFoundf("image %q not found", name))
		}
		return errResponse(ocreerr.IoErrorf("remove image %q: %w", path, err))
	}
	return ipc.Response{Status: ipc.StatusOK}
}
