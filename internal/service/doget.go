package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/framesift/framesift/internal/decode"
	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/export"
	"github.com/framesift/framesift/internal/schema"
)

// InstancesTicket selects one structured-buffer snapshot for DoGet. A
// zero Point means the first observation point with recorded contents.
type InstancesTicket struct {
	Capture      string `json:"capture"`
	Resource     string `json:"resource"`
	Point        uint64 `json:"point_id,omitempty"`
	MaxInstances int    `json:"max_instances,omitempty"`
}

func parseTicket(raw []byte) (InstancesTicket, error) {
	var t InstancesTicket
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, errors.WrapValidationError(err, "service.DoGet", "invalid ticket")
	}
	if t.Resource == "" {
		return t, errors.NewValidationError("service.DoGet", "ticket needs a resource")
	}
	return t, nil
}

// snapshot resolves a ticket to the raw bytes and layout of one buffer
// snapshot.
type snapshot struct {
	resource string
	point    uint64
	layout   *schema.Layout
	raw      []byte
}

func (s *InspectionServer) resolveSnapshot(sess *session, t InstancesTicket) (*snapshot, error) {
	res, layout, err := sess.inspector.Layout(t.Resource)
	if err != nil {
		return nil, err
	}

	if t.Point != 0 {
		raw, err := sess.ctrl.ReadBuffer(t.Point, res.ID, 0, 0)
		if err != nil {
			return nil, err
		}
		return &snapshot{resource: res.Name, point: t.Point, layout: layout, raw: raw}, nil
	}

	for _, point := range sess.ctrl.PointIDs() {
		raw, err := sess.ctrl.ReadBuffer(point, res.ID, 0, 0)
		if err != nil || len(raw) == 0 {
			continue
		}
		return &snapshot{resource: res.Name, point: point, layout: layout, raw: raw}, nil
	}
	return nil, errors.NewInsufficientDataError("service.DoGet",
		"no observation point recorded contents for the buffer").
		WithContext("resource", res.Name)
}

// maxRowsPerBatch bounds one IPC message. Snapshots of large buffers are
// sliced so a client never has to buffer the whole table to see any of it.
const maxRowsPerBatch = 4096

// DoGet streams the decoded instances of one buffer snapshot as record
// batches. The ticket is the JSON form of InstancesTicket.
func (s *InspectionServer) DoGet(tkt *flight.Ticket, stream flight.FlightService_DoGetServer) (err error) {
	start := time.Now()
	defer func() { observeFlight("do-get", start, err) }()

	t, err := parseTicket(tkt.GetTicket())
	if err != nil {
		return ToGRPCStatus(err)
	}
	sess, err := s.session(t.Capture)
	if err != nil {
		return ToGRPCStatus(err)
	}
	snap, err := s.resolveSnapshot(sess, t)
	if err != nil {
		return ToGRPCStatus(err)
	}

	rec, err := export.InstancesRecord(s.mem, snap.layout, snap.raw, snap.resource, snap.point, t.MaxInstances)
	if err != nil {
		return ToGRPCStatus(err)
	}
	defer rec.Release()

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	defer w.Close()

	rows := rec.NumRows()
	for off := int64(0); off == 0 || off < rows; off += maxRowsPerBatch {
		end := off + maxRowsPerBatch
		if end > rows {
			end = rows
		}
		batch := rec.NewSlice(off, end)
		err = w.Write(batch)
		batch.Release()
		if err != nil {
			return ToGRPCStatus(errors.WrapExportError(err, "service.DoGet", "writing record batch"))
		}
	}
	return nil
}

// GetFlightInfo describes the stream a ticket would produce. The
// descriptor command is the same JSON ticket DoGet consumes.
func (s *InspectionServer) GetFlightInfo(_ context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	t, err := parseTicket(desc.GetCmd())
	if err != nil {
		return nil, ToGRPCStatus(err)
	}
	sess, err := s.session(t.Capture)
	if err != nil {
		return nil, ToGRPCStatus(err)
	}
	snap, err := s.resolveSnapshot(sess, t)
	if err != nil {
		return nil, ToGRPCStatus(err)
	}

	sc, err := export.ArrowSchema(snap.layout, snap.resource, snap.point)
	if err != nil {
		return nil, ToGRPCStatus(err)
	}
	count := decode.Count(snap.raw, snap.layout)
	if t.MaxInstances > 0 && count > t.MaxInstances {
		count = t.MaxInstances
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(sc, s.mem),
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{{
			Ticket: &flight.Ticket{Ticket: desc.GetCmd()},
		}},
		TotalRecords: int64(count),
		TotalBytes:   -1,
	}, nil
}
