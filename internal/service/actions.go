package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/inspect"
)

// Action types accepted by DoAction. Every body is a JSON envelope with a
// "capture" field naming the loaded capture plus the workflow's request
// fields; every response is one Result carrying the workflow's JSON.
const (
	ActionBufferDetails   = "buffer-details"
	ActionBufferChanges   = "buffer-changes"
	ActionTextureChanges  = "texture-changes"
	ActionBindingChanges  = "binding-changes"
	ActionResourceWrites  = "resource-writes"
	ActionResourceUses    = "resource-uses"
	ActionSearchResources = "search-resources"
	ActionServerStatus    = "server-status"
)

type actionDescriptor struct {
	name string
	desc string
}

var actionCatalog = []actionDescriptor{
	{ActionBufferDetails, "Summarize a buffer's declared layout, usage and first instances"},
	{ActionBufferChanges, "Track per-element change timelines of a structured buffer"},
	{ActionTextureChanges, "Track per-texel change timelines of a texture"},
	{ActionBindingChanges, "Track what a pipeline's binding slots pointed at over time"},
	{ActionResourceWrites, "List the points whose actions could write a resource"},
	{ActionResourceUses, "Classify every use of a resource by comparing snapshots"},
	{ActionSearchResources, "Filter the capture's resource table by name and kind"},
	{ActionServerStatus, "Report loaded captures and server build info"},
}

// ListActions advertises the action catalog.
func (s *InspectionServer) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	for _, a := range actionCatalog {
		if err := stream.Send(&flight.ActionType{Type: a.name, Description: a.desc}); err != nil {
			return err
		}
	}
	return nil
}

// DoAction dispatches one workflow invocation.
func (s *InspectionServer) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	if action == nil {
		return status.Error(codes.InvalidArgument, "action is required")
	}
	start := time.Now()
	ctx := stream.Context()

	var err error
	switch action.Type {
	case ActionBufferDetails:
		err = s.handleBufferDetails(ctx, action.Body, stream)
	case ActionBufferChanges:
		err = s.handleBufferChanges(ctx, action.Body, stream)
	case ActionTextureChanges:
		err = s.handleTextureChanges(ctx, action.Body, stream)
	case ActionBindingChanges:
		err = s.handleBindingChanges(ctx, action.Body, stream)
	case ActionResourceWrites:
		err = s.handleResourceWrites(ctx, action.Body, stream)
	case ActionResourceUses:
		err = s.handleResourceUses(ctx, action.Body, stream)
	case ActionSearchResources:
		err = s.handleSearchResources(ctx, action.Body, stream)
	case ActionServerStatus:
		err = s.handleServerStatus(stream)
	default:
		observeFlight(action.Type, start, errUnknownAction)
		return status.Errorf(codes.Unimplemented, "unknown action: %s", action.Type)
	}

	observeFlight(action.Type, start, err)
	if err != nil {
		s.logger.Warn(ctx, "action failed", map[string]any{
			"action": action.Type, "error": err.Error(),
		})
	}
	return ToGRPCStatus(err)
}

var errUnknownAction = errors.New(errors.ErrorTypeValidation, "service.DoAction", "unknown action")

// decodeBody parses an action body and pulls out the capture reference.
func decodeBody(body []byte, req any) (string, error) {
	var env struct {
		Capture string `json:"capture"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", errors.WrapValidationError(err, "service.DoAction", "invalid JSON body")
	}
	if req != nil {
		if err := json.Unmarshal(body, req); err != nil {
			return "", errors.WrapValidationError(err, "service.DoAction", "invalid request fields")
		}
	}
	return env.Capture, nil
}

// respond sends one JSON result back on the action stream.
func respond(stream flight.FlightService_DoActionServer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.WrapExportError(err, "service.DoAction", "encoding result")
	}
	return stream.Send(&flight.Result{Body: body})
}

func (s *InspectionServer) handleBufferDetails(ctx context.Context, body []byte, stream flight.FlightService_DoActionServer) error {
	var req inspect.BufferDetailsRequest
	capture, err := decodeBody(body, &req)
	if err != nil {
		return err
	}
	sess, err := s.session(capture)
	if err != nil {
		return err
	}
	result, err := sess.inspector.BufferDetails(ctx, req)
	if err != nil {
		return err
	}
	return respond(stream, result)
}

func (s *InspectionServer) handleBufferChanges(ctx context.Context, body []byte, stream flight.FlightService_DoActionServer) error {
	var req inspect.BufferChangesRequest
	capture, err := decodeBody(body, &req)
	if err != nil {
		return err
	}
	sess, err := s.session(capture)
	if err != nil {
		return err
	}
	result, err := sess.inspector.BufferChanges(ctx, req)
	if err != nil {
		return err
	}
	return respond(stream, result)
}

func (s *InspectionServer) handleTextureChanges(ctx context.Context, body []byte, stream flight.FlightService_DoActionServer) error {
	var req inspect.TextureChangesRequest
	capture, err := decodeBody(body, &req)
	if err != nil {
		return err
	}
	sess, err := s.session(capture)
	if err != nil {
		return err
	}
	result, err := sess.inspector.TextureChanges(ctx, req)
	if err != nil {
		return err
	}
	return respond(stream, result)
}

func (s *InspectionServer) handleBindingChanges(ctx context.Context, body []byte, stream flight.FlightService_DoActionServer) error {
	var req inspect.BindingChangesRequest
	capture, err := decodeBody(body, &req)
	if err != nil {
		return err
	}
	sess, err := s.session(capture)
	if err != nil {
		return err
	}
	result, err := sess.inspector.BindingChanges(ctx, req)
	if err != nil {
		return err
	}
	return respond(stream, result)
}

func (s *InspectionServer) handleResourceWrites(ctx context.Context, body []byte, stream flight.FlightService_DoActionServer) error {
	var req inspect.ResourceWritesRequest
	capture, err := decodeBody(body, &req)
	if err != nil {
		return err
	}
	sess, err := s.session(capture)
	if err != nil {
		return err
	}
	result, err := sess.inspector.ResourceWrites(ctx, req)
	if err != nil {
		return err
	}
	return respond(stream, result)
}

func (s *InspectionServer) handleResourceUses(ctx context.Context, body []byte, stream flight.FlightService_DoActionServer) error {
	var req inspect.ResourceUsesRequest
	capture, err := decodeBody(body, &req)
	if err != nil {
		return err
	}
	sess, err := s.session(capture)
	if err != nil {
		return err
	}
	result, err := sess.inspector.ResourceUses(ctx, req)
	if err != nil {
		return err
	}
	return respond(stream, result)
}

func (s *InspectionServer) handleSearchResources(ctx context.Context, body []byte, stream flight.FlightService_DoActionServer) error {
	var req inspect.SearchResourcesRequest
	capture, err := decodeBody(body, &req)
	if err != nil {
		return err
	}
	sess, err := s.session(capture)
	if err != nil {
		return err
	}
	result, err := sess.inspector.SearchResources(ctx, req)
	if err != nil {
		return err
	}
	return respond(stream, result)
}

// ServerStatus is the server-status action's response.
type ServerStatus struct {
	LoadedCaptures []string `json:"loaded_captures"`
	MaxSessions    int      `json:"max_sessions"`
	Actions        []string `json:"actions"`
}

func (s *InspectionServer) handleServerStatus(stream flight.FlightService_DoActionServer) error {
	names := make([]string, 0)
	for _, key := range s.sessions.Keys() {
		names = append(names, key)
	}
	actions := make([]string, 0, len(actionCatalog))
	for _, a := range actionCatalog {
		actions = append(actions, a.name)
	}
	return respond(stream, &ServerStatus{
		LoadedCaptures: names,
		MaxSessions:    s.maxSessions,
		Actions:        actions,
	})
}
