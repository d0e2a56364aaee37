package calbridge

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods

// The bridge exposes a small unary surface keyed by these method names.
// Payloads are google.protobuf.Struct both ways, so no generated stubs are
// needed on either side of the wire.
const (
	methodCurrentAndNext = "/calbridge.Bridge/CurrentAndNext"
	methodListToday      = "/calbridge.Bridge/ListToday"
	methodCreateEvent    = "/calbridge.Bridge/CreateEvent"
	methodReschedule     = "/calbridge.Bridge/Reschedule"
	methodFreeSlots      = "/calbridge.Bridge/FreeSlots"
)

// #endregion methods

// #region client-struct

// Invoker is the unary-call surface of a gRPC connection.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error
}

// Client wraps the gRPC connection to the calendar bridge sidecar.
type Client struct {
	conn    *grpc.ClientConn
	invoker Invoker
}

// #endregion client-struct

// #region constructor

// NewClient connects to the calendar bridge gRPC server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, invoker: conn}, nil
}

// NewClientWithInvoker creates a Client with an injected call surface.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(inv Invoker) *Client {
	return &Client{invoker: inv}
}

// Close tears down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region current-and-next

// CurrentAndNext returns the event in progress (if any) and the next
// upcoming event (if any).
func (c *Client) CurrentAndNext(ctx context.Context) (current, next *Event, err error) {
	resp, err := c.call(ctx, methodCurrentAndNext, map[string]interface{}{})
	if err != nil {
		return nil, nil, err
	}
	if current, err = decodeOptionalEvent(resp["current"]); err != nil {
		return nil, nil, fmt.Errorf("decode current: %w", err)
	}
	if next, err = decodeOptionalEvent(resp["next"]); err != nil {
		return nil, nil, fmt.Errorf("decode next: %w", err)
	}
	return current, next, nil
}

// #endregion current-and-next

// #region list-today

// ListToday returns today's events in start order.
func (c *Client) ListToday(ctx context.Context) ([]Event, error) {
	resp, err := c.call(ctx, methodListToday, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	raw, _ := resp["events"].([]interface{})
	events := make([]Event, 0, len(raw))
	for i, r := range raw {
		ev, err := decodeOptionalEvent(r)
		if err != nil || ev == nil {
			return nil, fmt.Errorf("decode event %d: %w", i, err)
		}
		events = append(events, *ev)
	}
	return events, nil
}

// #endregion list-today

// #region create-event

// CreateEvent books a calendar event and returns its provider id.
func (c *Client) CreateEvent(ctx context.Context, title string, start time.Time, minutes int) (string, error) {
	resp, err := c.call(ctx, methodCreateEvent, map[string]interface{}{
		"title":    title,
		"start_at": start.UTC().Format(time.RFC3339),
		"minutes":  float64(minutes),
	})
	if err != nil {
		return "", err
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", fmt.Errorf("create event: bridge returned no id")
	}
	return id, nil
}

// #endregion create-event

// #region reschedule

// Reschedule moves an existing event to a new start.
func (c *Client) Reschedule(ctx context.Context, eventID string, newStart time.Time) error {
	_, err := c.call(ctx, methodReschedule, map[string]interface{}{
		"id":       eventID,
		"start_at": newStart.UTC().Format(time.RFC3339),
	})
	return err
}

// #endregion reschedule

// #region free-slots

// FreeSlots returns free windows of at least minMinutes between from and to.
func (c *Client) FreeSlots(ctx context.Context, from, to time.Time, minMinutes int) ([]Slot, error) {
	resp, err := c.call(ctx, methodFreeSlots, map[string]interface{}{
		"from":        from.UTC().Format(time.RFC3339),
		"to":          to.UTC().Format(time.RFC3339),
		"min_minutes": float64(minMinutes),
	})
	if err != nil {
		return nil, err
	}
	raw, _ := resp["slots"].([]interface{})
	slots := make([]Slot, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("decode slot %d: not an object", i)
		}
		startStr, _ := m["start_at"].(string)
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, fmt.Errorf("decode slot %d start_at: %w", i, err)
		}
		minutes, _ := m["minutes"].(float64)
		slots = append(slots, Slot{StartAt: start, Minutes: int(minutes)})
	}
	return slots, nil
}

// #endregion free-slots

// #region call

func (c *Client) call(ctx context.Context, method string, req map[string]interface{}) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	out := &structpb.Struct{}
	if err := c.invoker.Invoke(ctx, method, in, out); err != nil {
		return nil, fmt.Errorf("bridge %s: %w", method, err)
	}
	return out.AsMap(), nil
}

func decodeOptionalEvent(v interface{}) (*Event, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("not an object")
	}
	var ev Event
	ev.ID, _ = m["id"].(string)
	ev.Title, _ = m["title"].(string)
	ev.Description, _ = m["description"].(string)
	ev.HasAttendees, _ = m["has_attendees"].(bool)

	startStr, _ := m["start_at"].(string)
	endStr, _ := m["end_at"].(string)
	var err error
	if ev.StartAt, err = time.Parse(time.RFC3339, startStr); err != nil {
		return nil, fmt.Errorf("start_at: %w", err)
	}
	if ev.EndAt, err = time.Parse(time.RFC3339, endStr); err != nil {
		return nil, fmt.Errorf("end_at: %w", err)
	}
	return &ev, nil
}

// #endregion call
