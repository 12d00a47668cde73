package supervisor

import (
	"context"
	"sync"

	"strconv"

	"github.com/project-ocre/ocre/pkg/container"
	"github.com/project-ocre/ocre/pkg/ipc"
	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/metrics"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/ocrectx"
	"github.com/project-ocre/ocre/pkg/runtime"
)

// createMeta is the sliver of a container's creation parameters that isn't
// recoverable from the live *container.Container itself, kept around only
// so toRecord can persist a faithful ContainerRecord.
type createMeta struct {
	runtimeName string
	mounts      []runtime.Mount
}

var (
	metaMu sync.Mutex
	meta   = make(map[string]createMeta)
)

// dispatch records per-opcode metrics around dispatchOp, the actual
// handler switch.
func (sv *Supervisor) dispatch(req ipc.Request) ipc.Response {
	opcode := strconv.Itoa(int(req.Op))
	timer := metrics.NewTimer()

	resp := sv.dispatchOp(req)

	timer.ObserveDurationVec(metrics.IPCRequestDuration, opcode)
	metrics.IPCRequestsTotal.WithLabelValues(opcode, strconv.Itoa(int(resp.Status))).Inc()
	return resp
}

// dispatchOp decodes req.Args per req.Op, calls into the Context or a
// Container, and encodes the result. It never panics on a malformed
// request: decode failures come back as StatusInvalidArgument.
func (sv *Supervisor) dispatchOp(req ipc.Request) ipc.Response {
	ctx := context.Background()

	switch req.Op {
	case ipc.OpContextCreateContainer:
		return sv.handleCreateContainer(ctx, req)
	case ipc.OpContextGetContainerByID:
		return sv.handleGetContainerByID(req)
	case ipc.OpContextRemoveContainer:
		return sv.handleRemoveContainer(ctx, req)
	case ipc.OpContextGetContainerCount:
		return sv.handleGetContainerCount()
	case ipc.OpContextGetContainers:
		return sv.handleGetContainers()
	case ipc.OpContextGetWorkingDirectory:
		return okResult(sv.ctx.WorkingDirectory())

	case ipc.OpContainerStart:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			if err := c.Start(ctx); err != nil {
				return errResponse(err)
			}
			sv.persist(c)
			return ipc.Response{Status: ipc.StatusOK}
		})
	case ipc.OpContainerGetStatus:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			return okResult(c.Status().String())
		})
	case ipc.OpContainerGetID:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			return okResult(c.ID())
		})
	case ipc.OpContainerGetImage:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			return okResult(c.Image())
		})
	case ipc.OpContainerIsDetached:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			return okResult(c.Detached())
		})
	case ipc.OpContainerPause:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			if err := c.Pause(ctx); err != nil {
				return errResponse(err)
			}
			sv.persist(c)
			return ipc.Response{Status: ipc.StatusOK}
		})
	case ipc.OpContainerUnpause:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			if err := c.Unpause(ctx); err != nil {
				return errResponse(err)
			}
			sv.persist(c)
			return ipc.Response{Status: ipc.StatusOK}
		})
	case ipc.OpContainerStop:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			if err := c.Stop(ctx); err != nil {
				return errResponse(err)
			}
			return ipc.Response{Status: ipc.StatusOK}
		})
	case ipc.OpContainerKill:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			if err := c.Kill(ctx); err != nil {
				return errResponse(err)
			}
			return ipc.Response{Status: ipc.StatusOK}
		})
	case ipc.OpContainerWait:
		return sv.withContainer(req, func(c *container.Container) ipc.Response {
			exitCode, err := c.Wait(ctx)
			if err != nil {
				return errResponse(err)
			}
			sv.persist(c)
			return okResult(int32(exitCode))
		})
	case ipc.OpContainerRemove:
		return sv.handleRemoveContainer(ctx, req)

	case ipc.OpImageList:
		return sv.handleImageList()
	case ipc.OpImagePull:
		return sv.handleImagePull(req)
	case ipc.OpImageRemove:
		return sv.handleImageRemove(req)

	default:
		return errResponse(ocreerr.InvalidArgumentf("unknown opcode %d", req.Op))
	}
}

func (sv *Supervisor) handleCreateContainer(ctx context.Context, req ipc.Request) ipc.Response {
	var args ipc.CreateContainerArgs
	if err := ipc.DecodeArg(req.Args, &args); err != nil {
		return errResponse(err)
	}

	params := ocrectx.CreateContainerParams{
		Image:        args.Image,
		Detached:     args.Detached,
		Argv:         args.Argv,
		Envp:         args.Envp,
		Capabilities: args.Capabilities,
		StackSize:    args.StackSize,
		HeapSize:     args.HeapSize,
	}
	if args.Runtime != nil {
		params.Runtime = *args.Runtime
	}
	if args.ID != nil {
		params.ID = *args.ID
	}
	for _, m := range args.Mounts {
		params.Mounts = append(params.Mounts, runtime.Mount{Source: m.Source, Destination: m.Destination})
	}

	c, err := sv.ctx.CreateContainer(ctx, params)
	if err != nil {
		return errResponse(err)
	}

	metaMu.Lock()
	meta[c.ID()] = createMeta{runtimeName: params.Runtime, mounts: params.Mounts}
	metaMu.Unlock()

	sv.persist(c)
	return okResult(toContainerInfo(c))
}

func (sv *Supervisor) handleGetContainerByID(req ipc.Request) ipc.Response {
	var id string
	if err := ipc.DecodeArg(req.Args, &id); err != nil {
		return errResponse(err)
	}
	c, err := sv.ctx.GetContainerByID(id)
	if err != nil {
		return errResponse(err)
	}
	return okResult(toContainerInfo(c))
}

func (sv *Supervisor) handleRemoveContainer(ctx context.Context, req ipc.Request) ipc.Response {
	var id string
	if err := ipc.DecodeArg(req.Args, &id); err != nil {
		return errResponse(err)
	}
	if err := sv.ctx.RemoveContainer(ctx, id); err != nil {
		return errResponse(err)
	}

	metaMu.Lock()
	delete(meta, id)
	metaMu.Unlock()

	if err := sv.store.Delete(id); err != nil {
		log.Logger.Warn().Err(err).Str("container_id", id).Msg("failed to delete container record")
	}
	return ipc.Response{Status: ipc.StatusOK}
}

func (sv *Supervisor) handleGetContainerCount() ipc.Response {
	return okResult(int32(sv.ctx.GetContainerCount()))
}

func (sv *Supervisor) handleGetContainers() ipc.Response {
	containers := sv.ctx.GetContainers()
	infos := make([]ipc.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		infos = append(infos, toContainerInfo(c))
	}
	return okResult(infos)
}

// withContainer decodes a bare container ID from req.Args, looks it up, and
// runs fn against it. Every single-container opcode shares this shape.
func (sv *Supervisor) withContainer(req ipc.Request, fn func(*container.Container) ipc.Response) ipc.Response {
	var id string
	if err := ipc.DecodeArg(req.Args, &id); err != nil {
		return errResponse(err)
	}
	c, err := sv.ctx.GetContainerByID(id)
	if err != nil {
		return errResponse(err)
	}
	return fn(c)
}

// persist snapshots c into the metadata store. Failures are logged, not
// propagated: the store is a cache for reconciliation, not the source of
// truth for a running daemon.
func (sv *Supervisor) persist(c *container.Container) {
	metaMu.Lock()
	m := meta[c.ID()]
	metaMu.Unlock()

	rec := toRecord(c, m.runtimeName, m.mounts)
	if err := sv.store.Put(rec); err != nil {
		log.Logger.Warn().Err(err).Str("container_id", c.ID()).Msg("failed to persist container record")
	}
}

func toContainerInfo(c *container.Container) ipc.ContainerInfo {
	return ipc.ContainerInfo{
		ID:       c.ID(),
		Image:    c.Image(),
		Status:   c.Status().String(),
		Detached: c.Detached(),
	}
}

func okResult(v any) ipc.Response {
	data, err := ipc.EncodeArg(v)
	if err != nil {
		return errResponse(err)
	}
	return ipc.Response{Status: ipc.StatusOK, Result: data}
}

func errResponse(err error) ipc.Response {
	return ipc.Response{Status: ipc.StatusFromError(err), Message: err.Error()}
}
