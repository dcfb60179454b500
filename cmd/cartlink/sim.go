package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/cartbridge/cart"
	"github.com/ardnew/cartbridge/cart/hal/sim"
	"github.com/ardnew/cartbridge/pkg"
)

// runSim serves a simulated cart on a TCP port. The console side runs the
// bridge driver and echoes every message it receives back to the PC.
func runSim(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sim", flag.ContinueOnError)
	listen := fs.String("listen", "127.0.0.1:6464", "Address to accept link connections on")
	sdram := fs.String("sdram", "", "Back the cart's SDRAM window with this file")
	interval := fs.Duration("poll", 10*time.Millisecond, "Console poll interval")
	latency := fs.Int("latency", 0, "Status reads that report busy after each command")
	writeTimeout := fs.Duration("write-timeout", cart.DefaultWriteTimeout, "Console write timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		c   *sim.Cart
		err error
	)
	if *sdram != "" {
		c, err = sim.NewWithSDRAMFile(*sdram)
		if err != nil {
			return err
		}
	} else {
		c = sim.New()
	}
	defer c.Close()
	c.SetCommandLatency(*latency)

	d := cart.NewDriver(c, nil)
	d.SetWriteTimeout(*writeTimeout)
	if kind := d.Init(); kind == cart.KindNone {
		return pkg.ErrNoBackend
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	pkg.LogInfo(componentCLI, "simulated cart listening", "addr", ln.Addr().String(), "port", tcpPrefix+ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})

	// One host at a time, like a serial port.
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			log := pkg.ComponentLogger(componentCLI).With("remote", conn.RemoteAddr().String())
			log.Info("host connected")
			if err := c.ServeHost(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("host session ended", "error", err)
			} else {
				log.Info("host disconnected")
			}
			conn.Close()
		}
	})

	g.Go(func() error {
		return echo(ctx, d, *interval)
	})

	return g.Wait()
}

// echo is the console program: announce, then reflect each message.
func echo(ctx context.Context, d *cart.Driver, interval time.Duration) error {
	if err := d.SendHeartbeat(); err != nil {
		pkg.LogWarn(componentCLI, "heartbeat failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		h := d.Poll()
		if h.IsZero() {
			continue
		}
		data, err := io.ReadAll(d)
		if err != nil {
			pkg.LogWarn(componentCLI, "console read failed", "header", h.String(), "error", err)
			d.Purge()
			continue
		}
		if err := d.Write(h.Datatype(), data); err != nil {
			pkg.LogWarn(componentCLI, "console echo failed",
				"header", h.String(),
				"timed_out", d.TimedOut(),
				"error", err)
		}
	}
}
