package supervisor

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/project-ocre/ocre/pkg/container"
	"github.com/project-ocre/ocre/pkg/ipc"
	"github.com/project-ocre/ocre/pkg/library"
	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/metrics"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/ocrectx"
	"github.com/project-ocre/ocre/pkg/runtime"
)

// Supervisor is the daemon behind cmd/ocred: one Library, one default
// Context, one metadata Store, all reachable over a Unix socket.
type Supervisor struct {
	lib       *library.Library
	ctx       *ocrectx.Context
	store     *Store
	collector *metrics.Collector

	listener   net.Listener
	metricsSrv *http.Server
	wg         sync.WaitGroup
}

// Open initializes a Library, creates its default Context at workdir, opens
// the metadata store at dbPath, and reconciles any container records left
// over from a previous run.
func Open(workdir, dbPath string) (*Supervisor, error) {
	lib, err := library.Initialize(library.Options{})
	if err != nil {
		return nil, err
	}

	c, err := lib.CreateContext(workdir)
	if err != nil {
		lib.Deinitialize(context.Background())
		return nil, err
	}

	store, err := OpenStore(dbPath)
	if err != nil {
		lib.Deinitialize(context.Background())
		return nil, err
	}
	metrics.RegisterComponent("store", true, "")

	sv := &Supervisor{lib: lib, ctx: c, store: store}
	sv.reconcile()

	if res, ok := lib.DefaultResources(); ok {
		sv.collector = metrics.NewCollector(c, res.Queue.Len, res.Timers, res.GPIO, res.Sensors, res.Messaging, res.Display)
		sv.collector.Start()
		metrics.RegisterComponent("dispatch", true, "")
	} else {
		metrics.RegisterComponent("dispatch", false, "no default engine resources to dispatch against")
	}

	return sv, nil
}

// reconcile marks every persisted record still claiming to be running or
// paused as stopped with exit code -1: the worker goroutine that would have
// updated it never survives a process restart, so the record has been
// lying since the moment the daemon went down.
func (sv *Supervisor) reconcile() {
	records, err := sv.store.List()
	if err != nil {
		log.Logger.Warn().Err(err).Msg("failed to list container records during reconciliation")
		return
	}

	for _, rec := range records {
		if rec.Status != container.StatusRunning.String() && rec.Status != "paused" {
			continue
		}
		rec.Status = container.StatusStopped.String()
		rec.ExitCode = -1
		if err := sv.store.Put(rec); err != nil {
			log.Logger.Warn().Err(err).Str("container_id", rec.ID).Msg("failed to reconcile container record")
			continue
		}
		log.Logger.Warn().Str("container_id", rec.ID).Msg("reconciled container as stopped after restart")
	}
}

// Serve listens on a Unix socket at socketPath and serves requests until
// ctx is canceled or Shutdown is called. The socket file is removed first
// if a stale one is left over from an unclean previous exit.
func (sv *Supervisor) Serve(ctx context.Context, socketPath string) error {
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return ocreerr.IoErrorf("supervisor: listen on %q: %w", socketPath, err)
	}
	sv.listener = listener
	metrics.RegisterComponent("socket", true, socketPath)

	log.Logger.Info().Str("socket", socketPath).Msg("supervisor listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return ocreerr.IoErrorf("supervisor: accept: %w", err)
			}
		}

		sv.wg.Add(1)
		go sv.handleConn(conn)
	}
}

// ServeMetrics serves /metrics, /healthz, /readyz and /livez on addr until
// ctx is canceled, the way Serve runs the IPC socket loop until canceled.
// Call it in its own goroutine alongside Serve.
func (sv *Supervisor) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	sv.metricsSrv = srv

	log.Logger.Info().Str("addr", addr).Msg("supervisor serving metrics and health endpoints")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return ocreerr.IoErrorf("supervisor: shut down metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return ocreerr.IoErrorf("supervisor: metrics server on %q: %w", addr, err)
		}
		return nil
	}
}

func (sv *Supervisor) handleConn(conn net.Conn) {
	defer sv.wg.Done()
	defer conn.Close()

	req, err := ipc.ReadRequest(conn)
	if err != nil {
		log.Logger.Debug().Err(err).Msg("failed to read ipc request")
		return
	}

	resp := sv.dispatch(req)

	if err := ipc.WriteResponse(conn, resp); err != nil {
		log.Logger.Debug().Err(err).Msg("failed to write ipc response")
	}
}

// Shutdown stops accepting connections, waits for in-flight ones to finish,
// destroys every container the Context holds, and closes the metadata
// store.
func (sv *Supervisor) Shutdown(ctx context.Context) error {
	metrics.RegisterComponent("socket", false, "shutting down")
	metrics.RegisterComponent("dispatch", false, "shutting down")
	metrics.RegisterComponent("store", false, "shutting down")

	if sv.collector != nil {
		sv.collector.Stop()
	}

	if sv.listener != nil {
		sv.listener.Close()
	}

	if sv.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sv.metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to shut down metrics server cleanly")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		sv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Logger.Warn().Msg("timed out waiting for in-flight requests during shutdown")
	}

	if err := sv.lib.Deinitialize(ctx); err != nil {
		log.Logger.Warn().Err(err).Msg("library deinitialize reported an error")
	}

	return sv.store.Close()
}

// toRecord snapshots a container's current state into a ContainerRecord
// suitable for persistence.
func toRecord(c *container.Container, runtimeName string, mounts []runtime.Mount) ContainerRecord {
	status := c.Status()
	rec := ContainerRecord{
		ID:        c.ID(),
		Image:     c.Image(),
		Runtime:   runtimeName,
		Detached:  c.Detached(),
		Mounts:    mounts,
		Status:    status.String(),
		CreatedAt: time.Now(),
	}
	if status == container.StatusStopped {
		rec.ExitCode = c.ExitCode()
	}
	return rec
}
