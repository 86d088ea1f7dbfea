package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"golang.org/x/sync/errgroup"

	"github.com/tsinspect/tsinspect"
	"github.com/tsinspect/tsinspect/metrics"
)

var (
	addr         = flag.String("addr", "239.1.1.2:1234", "the multicast or unicast udp address to listen on (ip:port, IPv4 only)")
	refresh      = flag.Int("refresh", 2, "seconds between snapshot emissions")
	noAnalysis   = flag.Bool("no-analysis", false, "disable the TR 101 290 engine")
	tr101Flag    = flag.String("tr101-priority", "12", "tr101 290 counters to report: 1, 12, or all")
	cpuProfiling = flag.Bool("cpuprofile", false, "enable cpu profiling")
	memProfiling = flag.Bool("memprofile", false, "enable memory profiling")
	metricsAddr  = flag.String("metrics-addr", "", "if set, serve prometheus metrics on this address (e.g. :9090)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	priority, ok := tsinspect.ParseTR101Priority(*tr101Flag)
	if !ok {
		fmt.Fprintf(os.Stderr, "tsinspect: invalid --tr101-priority %q, want 1, 12, or all\n", *tr101Flag)
		flag.Usage()
		os.Exit(2)
	}

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	handleSignals(cancel)

	if err := run(ctx, priority); err != nil {
		log.Fatal(fmt.Errorf("tsinspect: %w", err))
	}
}

func run(ctx context.Context, priority tsinspect.TR101Priority) error {
	var reg *metrics.Registry
	if *metricsAddr != "" {
		reg = metrics.NewRegistry()
	}

	opts := tsinspect.SocketOptions{
		Addr:     *addr,
		Refresh:  time.Duration(*refresh) * time.Second,
		Priority: priority,
		Analysis: !*noAnalysis,
		OnSnapshot: func(s *tsinspect.Snapshot) {
			if reg != nil {
				reg.Update(s)
			}
			printSnapshot(s)
		},
	}

	if reg == nil {
		return tsinspect.RunOnSocket(ctx, opts)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tsinspect.RunOnSocket(gctx, opts)
	})
	g.Go(func() error {
		srv := &http.Server{Addr: *metricsAddr, Handler: reg.Handler()}
		go func() {
			<-gctx.Done()
			srv.Close()
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("tsinspect: metrics server failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func printSnapshot(s *tsinspect.Snapshot) {
	j := s.ToJSON()
	log.Printf("snapshot at %s: %d program(s), pid_errors=%d, continuity_counter_errors=%d",
		j.TsTime, len(j.Programs), j.TR101.PIDErrors, j.TR101.ContinuityCounterErrors)
}

func handleSignals(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGABRT, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	go func() {
		s := <-ch
		log.Printf("received signal %s, shutting down\n", s)
		cancel()
	}()
}
