// Package ipc defines the wire protocol a running supervisor daemon
// (cmd/ocred) and a client (cmd/ocre, or any other process on the same
// host) speak over a Unix domain socket: CBOR-encoded, opcode-first arrays,
// one request per connection, one response per request.
//
// Every request is encoded as a two-element CBOR array: the Opcode first,
// then that opcode's argument value, itself CBOR-encoded into a byte string
// (nil when the opcode takes none). Within an argument value, an optional
// argument the caller didn't set is encoded as CBOR nil rather than omitted.
// Every response is a three-element CBOR array: a Status (0 for success),
// an error message (empty on success) and the CBOR-encoded result value,
// if any.
package ipc

// Opcode identifies one Context or Container operation on the wire.
type Opcode uint32

const (
	OpContextCreateContainer Opcode = iota + 1
	OpContextGetContainerByID
	OpContextRemoveContainer
	OpContextGetContainerCount
	OpContextGetContainers
	OpContextGetWorkingDirectory

	OpContainerStart
	OpContainerGetStatus
	OpContainerGetID
	OpContainerGetImage
	OpContainerPause
	OpContainerUnpause
	OpContainerStop
	OpContainerKill
	OpContainerWait
	OpContainerIsDetached
	OpContainerRemove

	OpImageList
	OpImagePull
	OpImageRemove
)

// Status is the first element of every Response.
type Status uint32

const (
	StatusOK Status = iota
	StatusInvalidArgument
	StatusNotFound
	StatusConflict
	StatusWrongState
	StatusUnsupported
	StatusResourceExhausted
	StatusEngineError
	StatusIoError
)

// MountArg mirrors runtime.Mount for wire transport — kept as its own type
// so this package doesn't need to import pkg/runtime just to move bytes.
type MountArg struct {
	Source      string `cbor:"1,keyasint"`
	Destination string `cbor:"2,keyasint"`
}

// CreateContainerArgs is the argument list for OpContextCreateContainer.
// Pointer/slice fields a caller leaves unset encode as CBOR nil.
type CreateContainerArgs struct {
	Image    string   `cbor:"1,keyasint"`
	Runtime  *string  `cbor:"2,keyasint"`
	ID       *string  `cbor:"3,keyasint"`
	Detached bool     `cbor:"4,keyasint"`

	Argv         []string   `cbor:"5,keyasint"`
	Envp         []string   `cbor:"6,keyasint"`
	Capabilities []string   `cbor:"7,keyasint"`
	Mounts       []MountArg `cbor:"8,keyasint"`

	StackSize uint32 `cbor:"9,keyasint"`
	HeapSize  uint32 `cbor:"10,keyasint"`
}

// ContainerInfo is what the wire protocol hands back for a container: just
// enough to populate a CLI listing or a client-side handle without a second
// round trip for the common fields.
type ContainerInfo struct {
	ID       string `cbor:"1,keyasint"`
	Image    string `cbor:"2,keyasint"`
	Status   string `cbor:"3,keyasint"`
	Detached bool   `cbor:"4,keyasint"`
}

// Request is one call to the supervisor: an opcode plus its CBOR-encoded
// argument array. Args is re-decoded by the handler for Op, so its Go type
// varies by opcode (CreateContainerArgs, a bare string ID, etc).
type Request struct {
	_    struct{} `cbor:",toarray"`
	Op   Opcode `cbor:"1,keyasint"`
	Args []byte `cbor:"2,keyasint"` // CBOR-encoded opcode-specific argument value
}

// Response is the reply to a Request.
type Response struct {
	_       struct{} `cbor:",toarray"`
	Status  Status `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"` // set when Status != StatusOK
	Result  []byte `cbor:"3,keyasint"` // CBOR-encoded opcode-specific result value, if any
}
