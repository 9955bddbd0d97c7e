package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "grade_exporter.events."

// Forwarder bridges bus events to NATS so out-of-process listeners can
// observe the export lifecycle. Forwarding is best-effort: a publish
// failure is logged, never propagated to the pipeline.
type Forwarder struct {
	conn *nats.Conn
}

func NewForwarder(addr string) (*Forwarder, error) {
	conn, err := nats.Connect(addr, nats.Name("grade-exporter"))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to NATS at %s: %w", addr, err)
	}
	return &Forwarder{conn: conn}, nil
}

// Attach subscribes the forwarder to every event on the bus.
func (f *Forwarder) Attach(bus *Bus) {
	bus.SubscribeAll(f.forward)
}

func (f *Forwarder) forward(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.ErrorContext(ctx, "eventbus.nats.marshal_failed", "event", evt.Name, "error", err)
		return
	}
	if err := f.conn.Publish(subjectPrefix+evt.Name, data); err != nil {
		slog.ErrorContext(ctx, "eventbus.nats.publish_failed", "event", evt.Name, "error", err)
	}
}

func (f *Forwarder) Close() {
	if f.conn != nil {
		f.conn.Close()
	}
}
