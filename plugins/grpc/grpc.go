// Package grpc implements a transport.Adapter over gRPC, generalized from
// jeeves-core's coreengine/grpc server (grpc.NewServer, graceful shutdown
// via grpc.Server.GracefulStop, otelgrpc interceptor wiring). Since
// dispatchkit messages carry arbitrary opaque payloads rather than a fixed
// proto schema, this adapter registers a single generic RPC method via
// grpc.UnknownServiceHandler with a raw-bytes codec, instead of generated
// protoc-gen-go stubs.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/transport"
)

const dispatchMethod = "/eventmux.Transport/Dispatch"
const codecName = "eventmux-raw"

type rawPayload []byte

type bytesCodec struct{}

func (bytesCodec) Marshal(v interface{}) ([]byte, error) {
	p, ok := v.(*rawPayload)
	if !ok {
		return nil, fmt.Errorf("eventmux/grpc: unsupported type %T for raw codec", v)
	}
	return *p, nil
}

func (bytesCodec) Unmarshal(data []byte, v interface{}) error {
	p, ok := v.(*rawPayload)
	if !ok {
		return fmt.Errorf("eventmux/grpc: unsupported type %T for raw codec", v)
	}
	*p = append((*p)[:0], data...)
	return nil
}

func (bytesCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(bytesCodec{})
}

// Adapter implements transport.Adapter for gRPC.
type Adapter struct {
	name     string
	listenAt string
	opts     options

	mu      sync.Mutex
	running bool
	server  *grpc.Server
	conns   map[string]*grpc.ClientConn
}

// New constructs a gRPC adapter. listenAt is the address Subscribe binds
// to; it may be empty for adapters used only to Send.
func New(name, listenAt string, fns ...Option) *Adapter {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Adapter{name: name, listenAt: listenAt, opts: opts, conns: make(map[string]*grpc.ClientConn)}
}

func (a *Adapter) Name() string                  { return a.name }
func (a *Adapter) TransportType() transport.Type { return transport.GRPC }

func (a *Adapter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = true
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
	if a.server != nil {
		a.server.GracefulStop()
		a.server = nil
	}
	var errs []error
	for _, cc := range a.conns {
		if err := cc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("eventmux/grpc: stop: %v", errs)
	}
	return nil
}

func (a *Adapter) Dispose() error { return a.Stop(context.Background()) }

func (a *Adapter) connFor(destination string) (*grpc.ClientConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cc, ok := a.conns[destination]; ok {
		return cc, nil
	}
	cc, err := grpc.NewClient(destination,
		grpc.WithTransportCredentials(a.opts.credentials),
		grpc.WithChainUnaryInterceptor(otelgrpc.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, err
	}
	a.conns[destination] = cc
	return cc, nil
}

// Send invokes the generic Dispatch RPC against the peer named by
// destination (a dial target, "host:port"), carrying headers as gRPC
// outgoing metadata.
func (a *Adapter) Send(ctx context.Context, msg *core.Message, destination string) error {
	cc, err := a.connFor(destination)
	if err != nil {
		return fmt.Errorf("eventmux/grpc: dial %q: %w", destination, err)
	}

	md := metadata.MD{}
	for _, k := range msg.Headers.Keys() {
		v, _ := msg.Headers.Get(k)
		md.Append(k, v)
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	req := rawPayload(msg.Body)
	var resp rawPayload
	if err := cc.Invoke(ctx, dispatchMethod, &req, &resp, grpc.CallContentSubtype(codecName)); err != nil {
		return fmt.Errorf("eventmux/grpc: dispatch to %q: %w", destination, err)
	}
	return nil
}

func (a *Adapter) Receive(ctx context.Context, raw transport.RawMessage, dispatcher transport.Dispatcher) (core.Result, error) {
	msg, mctx := transport.BuildMessage(ctx, raw)
	mctx.SetSourceTransport(a.name)
	return dispatcher.Dispatch(ctx, msg, mctx)
}

func (a *Adapter) SupportsSubscription() bool { return a.listenAt != "" }

// Subscribe starts a gRPC server on listenAt whose only method is the
// generic Dispatch RPC, routing each call to dispatcher, until ctx is
// cancelled. subscriptionName is unused; gRPC has no topic/queue concept
// of its own, so one adapter instance serves one logical listener.
func (a *Adapter) Subscribe(ctx context.Context, subscriptionName string, dispatcher transport.Dispatcher) error {
	lis, err := net.Listen("tcp", a.listenAt)
	if err != nil {
		return fmt.Errorf("eventmux/grpc: listen on %q: %w", a.listenAt, err)
	}

	server := grpc.NewServer(
		grpc.ChainStreamInterceptor(otelgrpc.StreamServerInterceptor()),
		grpc.UnknownServiceHandler(a.handleDispatch(dispatcher)),
	)

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(lis) }()

	select {
	case <-ctx.Done():
		server.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *Adapter) handleDispatch(dispatcher transport.Dispatcher) grpc.StreamHandler {
	return func(srv interface{}, stream grpc.ServerStream) error {
		var req rawPayload
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}

		headers := map[string]string{}
		if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
			for k, vs := range md {
				if len(vs) > 0 {
					headers[k] = vs[0]
				}
			}
		}

		raw := transport.RawMessage{Body: req, Headers: headers}
		res, err := a.Receive(stream.Context(), raw, dispatcher)
		if err != nil {
			return err
		}
		if !res.Succeeded() {
			return fmt.Errorf("eventmux/grpc: dispatch did not succeed")
		}

		resp := rawPayload{}
		return stream.SendMsg(&resp)
	}
}

// Unsubscribe is a no-op; Subscribe's server exits on ctx cancellation.
func (a *Adapter) Unsubscribe(ctx context.Context, subscriptionName string) error {
	return nil
}

func (a *Adapter) CheckHealth(ctx context.Context) transport.HealthResult {
	start := time.Now()
	a.mu.Lock()
	healthy := a.listenAt == "" || a.server != nil
	a.mu.Unlock()
	desc := "ready"
	if !healthy {
		desc = "server not started"
	}
	return transport.HealthResult{Healthy: healthy, Description: desc, Category: transport.HealthCategoryConnectivity, Duration: time.Since(start)}
}
