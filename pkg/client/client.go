// Package client implements the ocre CLI's connection to a running ocred:
// one Unix domain socket dial per request, matching pkg/ipc's one-request-
// per-connection wire contract.
package client

import (
	"context"
	"net"
	"time"

	"github.com/project-ocre/ocre/pkg/ipc"
	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// Client talks to ocred over a Unix domain socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// New returns a Client pointed at socketPath. It does not dial until the
// first call — there is no persistent connection to keep alive.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 30 * time.Second}
}

func (c *Client) call(req ipc.Request) (ipc.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return ipc.Response{}, ocreerr.IoErrorf("connect to ocred at %q: %w", c.socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if err := ipc.WriteRequest(conn, req); err != nil {
		return ipc.Response{}, err
	}

	resp, err := ipc.ReadResponse(conn)
	if err != nil {
		return ipc.Response{}, err
	}

	if resp.Status != ipc.StatusOK {
		return resp, ipc.ErrorFromStatus(resp.Status, resp.Message)
	}
	return resp, nil
}

// CreateContainer asks ocred to create a container and returns its info.
func (c *Client) CreateContainer(ctx context.Context, args ipc.CreateContainerArgs) (ipc.ContainerInfo, error) {
	data, err := ipc.EncodeArg(args)
	if err != nil {
		return ipc.ContainerInfo{}, err
	}
	resp, err := c.call(ipc.Request{Op: ipc.OpContextCreateContainer, Args: data})
	if err != nil {
		return ipc.ContainerInfo{}, err
	}
	var info ipc.ContainerInfo
	if err := ipc.DecodeArg(resp.Result, &info); err != nil {
		return ipc.ContainerInfo{}, err
	}
	return info, nil
}

// GetContainer fetches a single container's info by ID.
func (c *Client) GetContainer(ctx context.Context, id string) (ipc.ContainerInfo, error) {
	data, _ := ipc.EncodeArg(id)
	resp, err := c.call(ipc.Request{Op: ipc.OpContextGetContainerByID, Args: data})
	if err != nil {
		return ipc.ContainerInfo{}, err
	}
	var info ipc.ContainerInfo
	if err := ipc.DecodeArg(resp.Result, &info); err != nil {
		return ipc.ContainerInfo{}, err
	}
	return info, nil
}

// ListContainers returns every container ocred currently holds.
func (c *Client) ListContainers(ctx context.Context) ([]ipc.ContainerInfo, error) {
	resp, err := c.call(ipc.Request{Op: ipc.OpContextGetContainers})
	if err != nil {
		return nil, err
	}
	var infos []ipc.ContainerInfo
	if err := ipc.DecodeArg(resp.Result, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// RemoveContainer destroys and forgets a container.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	data, _ := ipc.EncodeArg(id)
	_, err := c.call(ipc.Request{Op: ipc.OpContextRemoveContainer, Args: data})
	return err
}

func (c *Client) simpleContainerOp(op ipc.Opcode, id string) error {
	data, _ := ipc.EncodeArg(id)
	_, err := c.call(ipc.Request{Op: op, Args: data})
	return err
}

func (c *Client) Start(ctx context.Context, id string) error   { return c.simpleContainerOp(ipc.OpContainerStart, id) }
func (c *Client) Pause(ctx context.Context, id string) error   { return c.simpleContainerOp(ipc.OpContainerPause, id) }
func (c *Client) Unpause(ctx context.Context, id string) error { return c.simpleContainerOp(ipc.OpContainerUnpause, id) }
func (c *Client) Stop(ctx context.Context, id string) error    { return c.simpleContainerOp(ipc.OpContainerStop, id) }
func (c *Client) Kill(ctx context.Context, id string) error    { return c.simpleContainerOp(ipc.OpContainerKill, id) }

// Wait blocks (up to the client's request timeout) until the container
// exits and returns its exit code.
func (c *Client) Wait(ctx context.Context, id string) (int, error) {
	data, _ := ipc.EncodeArg(id)
	resp, err := c.call(ipc.Request{Op: ipc.OpContainerWait, Args: data})
	if err != nil {
		return 0, err
	}
	var exitCode int32
	if err := ipc.DecodeArg(resp.Result, &exitCode); err != nil {
		return 0, err
	}
	return int(exitCode), nil
}

// ImageInfo mirrors supervisor.ImageInfo on the wire.
type ImageInfo struct {
	Name string `cbor:"1,keyasint"`
	Size int64  `cbor:"2,keyasint"`
}

// pullArgs mirrors supervisor.pullArgs on the wire.
type pullArgs struct {
	Name       string `cbor:"1,keyasint"`
	SourcePath string `cbor:"2,keyasint"`
}

// ListImages returns every image under ocred's images directory.
func (c *Client) ListImages(ctx context.Context) ([]ImageInfo, error) {
	resp, err := c.call(ipc.Request{Op: ipc.OpImageList})
	if err != nil {
		return nil, err
	}
	var infos []ImageInfo
	if err := ipc.DecodeArg(resp.Result, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// PullImage installs the WASM module at sourcePath under name.
func (c *Client) PullImage(ctx context.Context, name, sourcePath string) error {
	data, err := ipc.EncodeArg(pullArgs{Name: name, SourcePath: sourcePath})
	if err != nil {
		return err
	}
	_, err = c.call(ipc.Request{Op: ipc.OpImagePull, Args: data})
	return err
}

// RemoveImage deletes an image by name.
func (c *Client) RemoveImage(ctx context.Context, name string) error {
	data, _ := ipc.EncodeArg(name)
	_, err := c.call(ipc.Request{Op: ipc.OpImageRemove, Args: data})
	return err
}
