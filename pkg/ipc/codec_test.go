package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-ocre/ocre/pkg/ocreerr"
)

func TestRequestRoundTrip(t *testing.T) {
	args, err := EncodeArg("container-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	req := Request{Op: OpContainerStart, Args: args}
	require.NoError(t, WriteRequest(&buf, req))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, req.Op, got.Op)

	var id string
	require.NoError(t, DecodeArg(got.Args, &id))
	assert.Equal(t, "container-1", id)
}

func TestResponseRoundTrip(t *testing.T) {
	result, err := EncodeArg(ContainerInfo{ID: "c1", Image: "test.wasm", Status: "running"})
	require.NoError(t, err)

	var buf bytes.Buffer
	resp := Response{Status: StatusOK, Result: result}
	require.NoError(t, WriteResponse(&buf, resp))

	got, err := ReadResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, got.Status)

	var info ContainerInfo
	require.NoError(t, DecodeArg(got.Result, &info))
	assert.Equal(t, "c1", info.ID)
	assert.Equal(t, "running", info.Status)
}

func TestCreateContainerArgsRoundTripWithOptionalFields(t *testing.T) {
	runtimeName := "wazero/wasip1"
	args := CreateContainerArgs{
		Image:   "test.wasm",
		Runtime: &runtimeName,
		Argv:    []string{"test.wasm", "--flag"},
		Mounts:  []MountArg{{Source: "/host", Destination: "/guest"}},
	}

	data, err := EncodeArg(args)
	require.NoError(t, err)

	var got CreateContainerArgs
	require.NoError(t, DecodeArg(data, &got))

	assert.Equal(t, "test.wasm", got.Image)
	require.NotNil(t, got.Runtime)
	assert.Equal(t, runtimeName, *got.Runtime)
	assert.Nil(t, got.ID)
	assert.Equal(t, []string{"test.wasm", "--flag"}, got.Argv)
	require.Len(t, got.Mounts, 1)
	assert.Equal(t, "/host", got.Mounts[0].Source)
}

func TestDecodeArgEmptyIsNoop(t *testing.T) {
	var s string
	require.NoError(t, DecodeArg(nil, &s))
	assert.Empty(t, s)
}

func TestStatusFromErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{ocreerr.InvalidArgumentf("x"), StatusInvalidArgument},
		{ocreerr.NotFoundf("x"), StatusNotFound},
		{ocreerr.Conflictf("x"), StatusConflict},
		{ocreerr.WrongStatef("x"), StatusWrongState},
		{ocreerr.Unsupportedf("x"), StatusUnsupported},
		{ocreerr.ResourceExhaustedf("x"), StatusResourceExhausted},
		{ocreerr.IoErrorf("x"), StatusIoError},
		{ocreerr.EngineErrorf("x"), StatusEngineError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusFromError(c.err))
	}
}

func TestErrorFromStatusRoundTrip(t *testing.T) {
	err := ErrorFromStatus(StatusNotFound, "container not found")
	require.Error(t, err)
	assert.True(t, ocreerr.IsNotFound(err))
	assert.Contains(t, err.Error(), "container not found")

	assert.NoError(t, ErrorFromStatus(StatusOK, ""))
}
