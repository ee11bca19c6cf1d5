package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/deixis/repeat/internal/config"
	rptmcp "github.com/deixis/repeat/internal/mcp"
	"github.com/deixis/repeat/internal/metrics"
	"github.com/deixis/repeat/internal/report"
)

var (
	mcpInstructions bool
	mcpHTTPAddr     string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mcpInstructions {
			fmt.Fprint(cmd.OutOrStdout(), rptmcp.Instructions)
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return serve(ctx, mcpHTTPAddr)
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpInstructions, "instructions", false, "print model instructions and exit")
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	rootCmd.AddCommand(mcpCmd)
}

func serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rec := metrics.NewRecorder()
	store := report.NewLRUStore(5, report.NewDiskStore(storeDir))
	server := rptmcp.NewServer(loaded, store,
		rptmcp.WithLogger(newLogger()),
		rptmcp.WithMetrics(rec),
	)

	if httpAddr != "" {
		return serveHTTP(ctx, server, rec, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

// serveHTTP serves MCP over streamable HTTP, with the batch metrics on
// /metrics.
func serveHTTP(ctx context.Context, server *mcpsdk.Server, rec *metrics.Recorder, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
