// Command calcserver hosts the sample calculator interface over TCP,
// registering itself in etcd when -etcd is given.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"duplexrpc/calc"
	"duplexrpc/discovery"
	"duplexrpc/rpcserver"
	"duplexrpc/stub"
)

type calculator struct {
	logger *zap.Logger
}

func (c *calculator) SimpleSum(ctx context.Context, a, b int32) (int32, error) {
	return a + b, nil
}

func (c *calculator) ArraySum(ctx context.Context, values []int32) (int32, error) {
	var sum int32
	for _, v := range values {
		sum += v
	}
	return sum, nil
}

func (c *calculator) StringConcatenate(ctx context.Context, a, b string) (string, error) {
	return a + b, nil
}

func (c *calculator) UniversalAdd(ctx context.Context, a, b calc.Number) (calc.AddResult, error) {
	if a.IsInt != b.IsInt {
		return calc.AddResult{
			Which: calc.AddResultError,
			Err: calc.AddError{
				Description: "incompatible argument types",
				Code:        calc.ErrorIncompatibleTypes,
			},
		}, nil
	}
	if a.IsInt {
		return calc.AddResult{Int: a.Int + b.Int, Which: calc.AddResultInt}, nil
	}
	return calc.AddResult{Str: a.Str + b.Str, Which: calc.AddResultString}, nil
}

func (c *calculator) SendTelemetryEvent(ctx context.Context, info calc.TelemetryInfo) {
	c.logger.Info("received telemetry event",
		zap.String("event", info.Event),
		zap.Bool("success", info.Success),
		zap.Time("occurred_at", info.Time),
	)
}

func main() {
	addr := flag.String("addr", "localhost:7776", "address to listen on")
	etcdEndpoint := flag.String("etcd", "", "etcd endpoint to register with (registration skipped if empty)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	iface, err := calc.NewInterfaceDesc(&calculator{logger: logger})
	if err != nil {
		logger.Fatal("failed to build interface description", zap.Error(err))
	}
	dispatcher := stub.NewDispatcher(iface, nil)

	var opts []rpcserver.Option
	opts = append(opts, rpcserver.WithLogger(logger))
	if *etcdEndpoint != "" {
		reg, err := discovery.NewEtcdRegistry([]string{*etcdEndpoint})
		if err != nil {
			logger.Fatal("failed to connect to etcd", zap.Error(err))
		}
		opts = append(opts, rpcserver.WithRegistry(reg, "CalculatorService", 10))
	}

	listener := rpcserver.New(dispatcher, opts...)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		if err := listener.Shutdown(5 * time.Second); err != nil {
			logger.Warn("shutdown did not complete cleanly", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("addr", *addr))
	if err := listener.Serve("tcp", *addr, *addr); err != nil {
		logger.Fatal("serve failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
