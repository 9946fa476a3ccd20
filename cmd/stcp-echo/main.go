// Command stcp-echo is a runnable demonstration of the stcp transport: it
// either listens for one incoming connection and echoes whatever it
// receives, or dials a listener and relays stdin/stdout over the
// connection, following the teacher corpus's convention of a small
// examples/*/main.go per protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"

	"github.com/nevivurn/stcp/internal"
	"github.com/nevivurn/stcp/stcp"
	"github.com/nevivurn/stcp/stcpmetrics"
	"github.com/nevivurn/stcp/udpnet"
)

func main() {
	var (
		listenAddr = flag.String("listen", "", "listen address (host:port); starts a passive-open echo server")
		dialAddr   = flag.String("dial", "", "remote address (host:port); starts an active-open stdin/stdout relay")
		metricsAddr = flag.String("metrics", ":2112", "address to serve /metrics on")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = internal.LevelTrace
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	collector := stcpmetrics.NewCollector("stcp", "conn", prometheus.Labels{})
	prometheus.MustRegister(collector)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logger.Error("metrics server exited", "err", http.ListenAndServe(*metricsAddr, nil))
	}()

	switch {
	case *listenAddr != "":
		if err := runServer(*listenAddr, logger, collector); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case *dialAddr != "":
		if err := runClient(*dialAddr, logger, collector); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: stcp-echo -listen host:port | -dial host:port")
		os.Exit(2)
	}
}

func runServer(addr string, logger *slog.Logger, collector *stcpmetrics.Collector) error {
	laddr, err := udpnet.ResolveUDPAddr(addr)
	if err != nil {
		return err
	}
	log := internal.Logger{Log: logger}
	conn, err := udpnet.Listen(laddr, &log)
	if err != nil {
		return err
	}
	defer conn.Close()

	id := xid.New().String()
	ctx := stcp.NewListen(stcp.Config{Logger: &log})
	collector.Add(id, ctx)
	defer collector.Remove(id)

	app := stcp.NewMemApp(1 << 16)
	events := make(chan stcp.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go pumpConn(conn, events, done)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := app.Read(buf)
			if n > 0 {
				app.Write(buf[:n])
				events <- stcp.Event{Kind: stcp.EventAppData}
			}
			if err != nil {
				return
			}
		}
	}()

	logger.Info("listening", "addr", addr, "id", id)
	return ctx.Run(context.Background(), conn, app, events)
}

func runClient(addr string, logger *slog.Logger, collector *stcpmetrics.Collector) error {
	raddr, err := udpnet.ResolveUDPAddr(addr)
	if err != nil {
		return err
	}
	log := internal.Logger{Log: logger}
	conn, err := udpnet.Dial(nil, raddr, &log)
	if err != nil {
		return err
	}
	defer conn.Close()

	id := xid.New().String()
	ctx := stcp.NewActive(stcp.Config{Logger: &log})
	collector.Add(id, ctx)
	defer collector.Remove(id)

	app := stcp.NewMemApp(1 << 16)
	events := make(chan stcp.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go pumpConn(conn, events, done)

	go func() {
		io.Copy(app, os.Stdin)
		app.CloseWrite()
		events <- stcp.Event{Kind: stcp.EventAppCloseRequested}
	}()
	go io.Copy(os.Stdout, app)

	logger.Info("connecting", "addr", addr, "id", id)
	return ctx.Run(context.Background(), conn, app, events)
}

// pumpConn forwards datagrams arriving on a *udpnet.Conn into events, the
// adapter between a blocking socket read and the select-driven event loop.
func pumpConn(conn *udpnet.Conn, events chan<- stcp.Event, done <-chan struct{}) {
	for {
		buf := make([]byte, 2048)
		n, err := conn.RecvFrom(buf)
		if err != nil {
			return
		}
		select {
		case events <- stcp.Event{Kind: stcp.EventNetworkData, Data: buf[:n]}:
		case <-done:
			return
		}
	}
}
