package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/relay/config"
	"github.com/shashiranjanraj/relay/internal/kernel"
	"github.com/shashiranjanraj/relay/internal/server"
	"github.com/shashiranjanraj/relay/pkg/event"
	"github.com/shashiranjanraj/relay/pkg/logger"
	"github.com/shashiranjanraj/relay/pkg/schedule"
)

var (
	serveAddr     string
	serveTickRate float64
)

// relay serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host loop and the debug HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveTickRate > 0 {
			config.Set("TICK_RATE", strconv.FormatFloat(serveTickRate, 'f', -1, 64))
		}
		addr := serveAddr
		if addr == "" {
			addr = config.DebugAddr()
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		loop := schedule.Main()
		loopDone := make(chan struct{})
		go func() {
			defer close(loopDone)
			loop.Run(ctx)
		}()
		loop.Post(func() { event.Broadcast("Startup", nil) })

		srvErr := server.Start(ctx, addr, kernel.NewHandler(kernel.Options{}))
		stop()
		<-loopDone

		if err := event.Shutdown(); err != nil {
			logger.Error("relay: dispatcher shutdown failed", "error", err)
			if srvErr == nil {
				return err
			}
		}
		return srvErr
	},
}

// relay route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List the debug HTTP routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range kernel.NewRouter(kernel.Options{}).Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Debug HTTP listen address (default DEBUG_ADDR)")
	serveCmd.Flags().Float64Var(&serveTickRate, "tick-rate", 0, "Host loop frames per second (default TICK_RATE)")
}
