package ipc

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// WriteRequest CBOR-encodes req onto w.
func WriteRequest(w io.Writer, req Request) error {
	enc := cbor.NewEncoder(w)
	if err := enc.Encode(req); err != nil {
		return ocreerr.IoErrorf("ipc: encode request: %w", err)
	}
	return nil
}

// ReadRequest decodes one Request from r. CBOR is self-delimiting, so a
// single Decode call reads exactly one value even over a stream that keeps
// more data after it.
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	if err := cbor.NewDecoder(r).Decode(&req); err != nil {
		return Request{}, ocreerr.IoErrorf("ipc: decode request: %w", err)
	}
	return req, nil
}

// WriteResponse CBOR-encodes resp onto w.
func WriteResponse(w io.Writer, resp Response) error {
	enc := cbor.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		return ocreerr.IoErrorf("ipc: encode response: %w", err)
	}
	return nil
}

// ReadResponse decodes one Response from r.
func ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	if err := cbor.NewDecoder(r).Decode(&resp); err != nil {
		return Response{}, ocreerr.IoErrorf("ipc: decode response: %w", err)
	}
	return resp, nil
}

// EncodeArg CBOR-encodes a single opcode argument value for Request.Args.
func EncodeArg(v any) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, ocreerr.IoErrorf("ipc: encode argument: %w", err)
	}
	return b, nil
}

// DecodeArg decodes Request.Args (or Response.Result) into v.
func DecodeArg(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		return ocreerr.IoErrorf("ipc: decode argument: %w", err)
	}
	return nil
}

// StatusFromError maps an ocreerr kind to its wire Status, defaulting to
// StatusEngineError for anything it doesn't recognize.
func StatusFromError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case ocreerr.IsInvalidArgument(err):
		return StatusInvalidArgument
	case ocreerr.IsNotFound(err):
		return StatusNotFound
	case ocreerr.IsConflict(err):
		return StatusConflict
	case ocreerr.IsWrongState(err):
		return StatusWrongState
	case ocreerr.IsUnsupported(err):
		return StatusUnsupported
	case ocreerr.IsResourceExhausted(err):
		return StatusResourceExhausted
	case ocreerr.IsIoError(err):
		return StatusIoError
	default:
		return StatusEngineError
	}
}

// ErrorFromStatus turns a non-OK Status plus its message back into an
// ocreerr-kinded error on the client side.
func ErrorFromStatus(status Status, message string) error {
	switch status {
	case StatusOK:
		return nil
	case StatusInvalidArgument:
		return ocreerr.InvalidArgumentf("%s", message)
	case StatusNotFound:
		return ocreerr.NotFoundf("%s", message)
	case StatusConflict:
		return ocreerr.Conflictf("%s", message)
	case StatusWrongState:
		return ocreerr.WrongStatef("%s", message)
	case StatusUnsupported:
		return ocreerr.Unsupportedf("%s", message)
	case StatusResourceExhausted:
		return ocreerr.ResourceExhaustedf("%s", message)
	case StatusIoError:
		return ocreerr.IoErrorf("%s", message)
	default:
		return ocreerr.EngineErrorf("%s", message)
	}
}
