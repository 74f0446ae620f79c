// Package client wraps the Flight surface with typed helpers, one per
// inspection workflow. Connections dial lazily and are reused.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/framesift/framesift/internal/inspect"
	"github.com/framesift/framesift/internal/service"
)

const (
	defaultMaxMsgSize = 1024 * 1024 * 100 // 100MB
	defaultTimeout    = 30 * time.Second
)

// Client talks to one framesift server.
type Client struct {
	mu       sync.RWMutex
	addr     string
	fc       flight.Client
	dialOpts []grpc.DialOption
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call deadline applied when the caller's
// context has none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialOptions appends extra gRPC dial options, e.g. a bufconn dialer
// in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// New builds a client for addr. Nothing is dialed until the first call.
func New(addr string, opts ...Option) *Client {
	c := &Client{
		addr: addr,
		dialOpts: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(defaultMaxMsgSize),
				grpc.MaxCallSendMsgSize(defaultMaxMsgSize),
			),
		},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close tears the connection down. The client can dial again afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fc == nil {
		return nil
	}
	err := c.fc.Close()
	c.fc = nil
	return err
}

// conn returns the shared flight client, dialing on first use.
func (c *Client) conn() (flight.Client, error) {
	c.mu.RLock()
	fc := c.fc
	c.mu.RUnlock()
	if fc != nil {
		return fc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fc != nil {
		return c.fc, nil
	}

	fc, err := flight.NewClientWithMiddleware(c.addr, nil, nil, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.addr, err)
	}
	c.fc = fc
	return fc, nil
}

// withDeadline applies the client timeout when ctx has no deadline.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// envelope merges a capture reference into a request's JSON fields.
func envelope(capture string, req any) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if req != nil {
		raw, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("request must encode to a JSON object: %w", err)
		}
	}
	raw, err := json.Marshal(capture)
	if err != nil {
		return nil, err
	}
	fields["capture"] = raw
	return json.Marshal(fields)
}

// action runs one DoAction round trip and decodes its single result.
func (c *Client) action(ctx context.Context, name, capture string, req, out any) error {
	body, err := envelope(capture, req)
	if err != nil {
		return err
	}

	fc, err := c.conn()
	if err != nil {
		return err
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	stream, err := fc.DoAction(ctx, &flight.Action{Type: name, Body: body})
	if err != nil {
		return err
	}
	res, err := stream.Recv()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", name, err)
	}
	// Drain so the RPC completes cleanly.
	for {
		if _, err := stream.Recv(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// BufferDetails summarizes one buffer's layout, usage and preview.
func (c *Client) BufferDetails(ctx context.Context, capture string, req inspect.BufferDetailsRequest) (*inspect.BufferDetailsResult, error) {
	var result inspect.BufferDetailsResult
	if err := c.action(ctx, service.ActionBufferDetails, capture, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BufferChanges tracks elements of a structured buffer across points.
func (c *Client) BufferChanges(ctx context.Context, capture string, req inspect.BufferChangesRequest) (*inspect.BufferChangesResult, error) {
	var result inspect.BufferChangesResult
	if err := c.action(ctx, service.ActionBufferChanges, capture, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TextureChanges tracks texel coordinates of a texture across points.
func (c *Client) TextureChanges(ctx context.Context, capture string, req inspect.TextureChangesRequest) (*inspect.TextureChangesResult, error) {
	var result inspect.TextureChangesResult
	if err := c.action(ctx, service.ActionTextureChanges, capture, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BindingChanges tracks a pipeline's binding table across points.
func (c *Client) BindingChanges(ctx context.Context, capture string, req inspect.BindingChangesRequest) (*inspect.BindingChangesResult, error) {
	var result inspect.BindingChangesResult
	if err := c.action(ctx, service.ActionBindingChanges, capture, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResourceWrites lists the points whose actions could write a resource.
func (c *Client) ResourceWrites(ctx context.Context, capture string, req inspect.ResourceWritesRequest) (*inspect.ResourceWritesResult, error) {
	var result inspect.ResourceWritesResult
	if err := c.action(ctx, service.ActionResourceWrites, capture, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResourceUses classifies every use of a resource.
func (c *Client) ResourceUses(ctx context.Context, capture string, req inspect.ResourceUsesRequest) (*inspect.ResourceUsesResult, error) {
	var result inspect.ResourceUsesResult
	if err := c.action(ctx, service.ActionResourceUses, capture, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchResources filters the capture's resource table.
func (c *Client) SearchResources(ctx context.Context, capture string, req inspect.SearchResourcesRequest) (*inspect.SearchResourcesResult, error) {
	var result inspect.SearchResourcesResult
	if err := c.action(ctx, service.ActionSearchResources, capture, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ServerStatus reports the server's loaded captures and action catalog.
func (c *Client) ServerStatus(ctx context.Context) (*service.ServerStatus, error) {
	var result service.ServerStatus
	if err := c.action(ctx, service.ActionServerStatus, "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListActions returns the action names the server advertises.
func (c *Client) ListActions(ctx context.Context) ([]string, error) {
	fc, err := c.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	stream, err := fc.ListActions(ctx, &flight.Empty{})
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		action, err := stream.Recv()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, action.Type)
	}
}

// Instances streams one buffer snapshot's decoded instances. The caller
// must Release the reader.
func (c *Client) Instances(ctx context.Context, ticket service.InstancesTicket) (*flight.Reader, error) {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	fc, err := c.conn()
	if err != nil {
		return nil, err
	}
	stream, err := fc.DoGet(ctx, &flight.Ticket{Ticket: raw})
	if err != nil {
		return nil, err
	}
	return flight.NewRecordReader(stream)
}

// InstancesInfo describes the stream a ticket would produce without
// fetching it.
func (c *Client) InstancesInfo(ctx context.Context, ticket service.InstancesTicket) (*flight.FlightInfo, error) {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	fc, err := c.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	return fc.GetFlightInfo(ctx, &flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  raw,
	})
}
