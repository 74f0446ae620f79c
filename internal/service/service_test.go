package service_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/export"
	"github.com/framesift/framesift/internal/inspect"
	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/schema"
	"github.com/framesift/framesift/internal/service"
)

const bufSize = 1024 * 1024

func particle(px, py, life float32, flags uint32) []byte {
	raw := make([]byte, 16)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(px))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(py))
	binary.LittleEndian.PutUint32(raw[8:], math.Float32bits(life))
	binary.LittleEndian.PutUint32(raw[12:], flags)
	return raw
}

func fixtureDump() *replay.Dump {
	particleType := schema.Struct("Particle",
		schema.Field("pos", 0, schema.Vector(schema.Float32, 2)),
		schema.Field("life", 8, schema.Scalar(schema.Float32)),
		schema.Field("flags", 12, schema.Scalar(schema.Uint32)),
	)
	return &replay.Dump{
		Capture: "demo",
		Resources: []replay.Resource{
			{ID: 10, Name: "Particles", Kind: replay.KindBuffer},
			{ID: 30, Name: "SimPipeline", Kind: replay.KindPipeline},
			{ID: 40, Name: "ParticleShader", Kind: replay.KindShader},
		},
		Layouts: []replay.DumpLayout{{
			ResourceID: 10, ShaderID: 40, Stage: "compute", Set: 0, Slot: 2,
			Name: "particles", ReadWrite: true, Type: particleType,
		}},
		Points: []replay.DumpPoint{
			{
				ID: 100, Label: "Dispatch A", Pipeline: 30,
				Bindings: []replay.Binding{
					{Stage: "compute", Bind: replay.BindRWResource, Set: 0, Slot: 2, Name: "particles", ResourceID: 10},
				},
				Buffers: map[uint64][]byte{
					10: append(particle(1, 2, 1, 0), particle(0, 0, 0.5, 1)...),
				},
			},
			{
				ID: 200, Label: "Dispatch B", Pipeline: 30,
				Bindings: []replay.Binding{
					{Stage: "compute", Bind: replay.BindRWResource, Set: 0, Slot: 2, Name: "particles", ResourceID: 10},
				},
				Buffers: map[uint64][]byte{
					10: append(particle(1, 2, 1, 0), particle(0, 0, 0.25, 1)...),
				},
			},
		},
	}
}

func fixtureOpener(t *testing.T) service.ControllerOpener {
	t.Helper()
	return func(capture string) (replay.Controller, error) {
		if capture != "demo" {
			return nil, errors.NewValidationError("test.opener", "unknown capture").
				WithContext("capture", capture)
		}
		return replay.NewStaticReplay(fixtureDump())
	}
}

func setupServer(t *testing.T) flight.Client {
	t.Helper()
	lis := bufconn.Listen(bufSize)

	srv := service.NewInspectionServer(fixtureOpener(t))
	s := grpc.NewServer()
	flight.RegisterFlightServiceServer(s, srv)

	go func() {
		if err := s.Serve(lis); err != nil {
			_ = err
		}
	}()

	dialer := func(ctx context.Context, address string) (net.Conn, error) {
		return lis.Dial()
	}
	client, err := flight.NewClientWithMiddleware(
		"passthrough:///bufnet",
		nil,
		nil,
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		s.Stop()
		lis.Close()
	})
	return client
}

// doAction invokes one action and decodes its single JSON result.
func doAction(t *testing.T, client flight.Client, name string, body any, out any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	stream, err := client.DoAction(context.Background(), &flight.Action{Type: name, Body: raw})
	require.NoError(t, err)
	res, err := stream.Recv()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(res.Body, out))
}

// actionCode invokes an action expected to fail and returns its status code.
func actionCode(t *testing.T, client flight.Client, name string, body any) codes.Code {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	stream, err := client.DoAction(context.Background(), &flight.Action{Type: name, Body: raw})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	return st.Code()
}

func TestDoActionBufferDetails(t *testing.T) {
	client := setupServer(t)

	var result inspect.BufferDetailsResult
	doAction(t, client, service.ActionBufferDetails, map[string]any{
		"capture": "demo", "resource": "Particles", "preview": 1,
	}, &result)

	assert.Equal(t, uint64(10), result.ResourceID)
	assert.Equal(t, "particles", result.BindingName)
	assert.Equal(t, uint32(16), result.Stride)
	assert.Equal(t, 4, result.FieldCount)
	assert.Equal(t, 2, result.InstanceCount)
	require.Len(t, result.Preview, 1)
	assert.Equal(t, `{"flags":0,"life":1,"pos":[1,2]}`, result.Preview[0].String())
}

func TestDoActionBufferChanges(t *testing.T) {
	client := setupServer(t)

	var result inspect.BufferChangesResult
	doAction(t, client, service.ActionBufferChanges, map[string]any{
		"capture": "demo", "resource": "Particles", "indices": []int{1},
	}, &result)

	assert.Equal(t, 1, result.TotalChanges)
	require.Len(t, result.Elements, 1)
	require.Len(t, result.Elements[0].Changes, 1)
	assert.Equal(t, uint64(200), result.Elements[0].Changes[0].Point)
	assert.Equal(t, `{"life":0.25}`, result.Elements[0].Changes[0].Patch.String())
}

func TestDoActionSearchResources(t *testing.T) {
	client := setupServer(t)

	var result inspect.SearchResourcesResult
	doAction(t, client, service.ActionSearchResources, map[string]any{
		"capture": "demo", "query": "particle",
	}, &result)
	assert.Equal(t, 2, result.Total)

	doAction(t, client, service.ActionSearchResources, map[string]any{
		"capture": "demo", "query": "particle", "kinds": []string{"buffer"},
	}, &result)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Resources, 1)
	assert.Equal(t, "Particles", result.Resources[0].Name)
}

func TestDoActionServerStatus(t *testing.T) {
	client := setupServer(t)

	// Load a session first so the status lists it.
	var search inspect.SearchResourcesResult
	doAction(t, client, service.ActionSearchResources, map[string]any{
		"capture": "demo", "query": "",
	}, &search)

	var result service.ServerStatus
	doAction(t, client, service.ActionServerStatus, map[string]any{}, &result)
	assert.Equal(t, []string{"demo"}, result.LoadedCaptures)
	assert.Equal(t, 4, result.MaxSessions)
	assert.Len(t, result.Actions, 8)
}

func TestDoActionErrorMapping(t *testing.T) {
	client := setupServer(t)

	assert.Equal(t, codes.NotFound, actionCode(t, client, service.ActionBufferDetails,
		map[string]any{"capture": "demo", "resource": "nope"}))
	assert.Equal(t, codes.InvalidArgument, actionCode(t, client, service.ActionBufferDetails,
		map[string]any{"resource": "Particles"}))
	assert.Equal(t, codes.InvalidArgument, actionCode(t, client, service.ActionBufferDetails,
		map[string]any{"capture": "missing", "resource": "Particles"}))
}

func TestDoActionUnknown(t *testing.T) {
	client := setupServer(t)

	stream, err := client.DoAction(context.Background(), &flight.Action{Type: "bogus"})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unimplemented, st.Code())
}

func TestListActions(t *testing.T) {
	client := setupServer(t)

	stream, err := client.ListActions(context.Background(), &flight.Empty{})
	require.NoError(t, err)

	var names []string
	for {
		action, err := stream.Recv()
		if err != nil {
			break
		}
		names = append(names, action.Type)
	}
	assert.Contains(t, names, service.ActionBufferDetails)
	assert.Contains(t, names, service.ActionResourceUses)
	assert.Len(t, names, 8)
}

func TestDoGetInstances(t *testing.T) {
	client := setupServer(t)

	ticket, err := json.Marshal(service.InstancesTicket{Capture: "demo", Resource: "Particles"})
	require.NoError(t, err)

	stream, err := client.DoGet(context.Background(), &flight.Ticket{Ticket: ticket})
	require.NoError(t, err)
	r, err := flight.NewRecordReader(stream)
	require.NoError(t, err)
	defer r.Release()

	meta := r.Schema().Metadata()
	idx := meta.FindKey("framesift.resource")
	require.NotEqual(t, -1, idx)
	assert.Equal(t, "Particles", meta.Values()[idx])

	require.True(t, r.Next())
	rec := r.Record()
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(6), rec.NumCols())
	assert.Equal(t, export.IndexColumn, rec.Schema().Field(0).Name)
	assert.Equal(t, export.PointColumn, rec.Schema().Field(1).Name)

	point := rec.Column(1).(*array.Uint64)
	assert.Equal(t, uint64(100), point.Value(0))

	life := rec.Column(4).(*array.Float32)
	assert.Equal(t, float32(1), life.Value(0))
	assert.Equal(t, float32(0.5), life.Value(1))
}

func TestDoGetExplicitPoint(t *testing.T) {
	client := setupServer(t)

	ticket, err := json.Marshal(service.InstancesTicket{
		Capture: "demo", Resource: "Particles", Point: 200,
	})
	require.NoError(t, err)

	stream, err := client.DoGet(context.Background(), &flight.Ticket{Ticket: ticket})
	require.NoError(t, err)
	r, err := flight.NewRecordReader(stream)
	require.NoError(t, err)
	defer r.Release()

	require.True(t, r.Next())
	rec := r.Record()
	point := rec.Column(1).(*array.Uint64)
	assert.Equal(t, uint64(200), point.Value(0))
	life := rec.Column(4).(*array.Float32)
	assert.Equal(t, float32(0.25), life.Value(1))
}

func TestDoGetBadTicket(t *testing.T) {
	client := setupServer(t)

	stream, err := client.DoGet(context.Background(), &flight.Ticket{Ticket: []byte(`{`)})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestGetFlightInfo(t *testing.T) {
	client := setupServer(t)

	cmd, err := json.Marshal(service.InstancesTicket{Capture: "demo", Resource: "Particles"})
	require.NoError(t, err)

	info, err := client.GetFlightInfo(context.Background(), &flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  cmd,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.TotalRecords)
	require.Len(t, info.Endpoint, 1)
	assert.Equal(t, cmd, info.Endpoint[0].Ticket.Ticket)

	sc, err := flight.DeserializeSchema(info.Schema, memory.NewGoAllocator())
	require.NoError(t, err)
	assert.Equal(t, 6, sc.NumFields())
	assert.Equal(t, "life", sc.Field(4).Name)
}
