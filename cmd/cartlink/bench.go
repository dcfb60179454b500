package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ardnew/cartbridge/pkg"
)

func runBench(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	conn := addConnectFlags(fs)
	count := fs.Int("n", 1000, "Number of round trips")
	size := fs.Int("size", 0, "Also send a message of this many bytes on each round trip")
	bins := fs.Int("bins", 10, "Histogram bins")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count <= 0 {
		return fmt.Errorf("-n %d: %w", *count, pkg.ErrInvalidParameter)
	}

	l, err := conn.openIdentified(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	payload := make([]byte, *size)
	times := make([]float64, 0, *count)
	for i := 0; i < *count; i++ {
		cctx, cancel := context.WithTimeout(ctx, *conn.timeout)
		start := time.Now()
		if *size > 0 {
			err = l.Send(cctx, pkg.DatatypeRawBinary, payload)
		} else {
			_, err = l.Identify(cctx)
		}
		elapsed := time.Since(start)
		cancel()
		if err != nil {
			return fmt.Errorf("round trip %d: %w", i, err)
		}
		times = append(times, float64(elapsed.Nanoseconds()))
	}

	p := message.NewPrinter(language.English)
	report(p, times, *size, *bins)
	return nil
}

func report(p *message.Printer, times []float64, size, bins int) {
	sorted := append([]float64(nil), times...)
	sort.Float64s(sorted)
	total := 0.0
	for _, v := range sorted {
		total += v
	}
	mean := total / float64(len(sorted))
	pct := func(q float64) float64 {
		return sorted[int(q*float64(len(sorted)-1))]
	}

	p.Printf("%d round trips", len(sorted))
	if size > 0 {
		p.Printf(", %d bytes each, %.0f bytes/s", size, float64(size)*float64(len(sorted))/(total/1e9))
	}
	p.Println()
	p.Printf("min %dns  mean %dns  p50 %dns  p99 %dns  max %dns\n\n",
		int64(sorted[0]), int64(mean), int64(pct(0.5)), int64(pct(0.99)), int64(sorted[len(sorted)-1]))

	hist := histogram.Hist(bins, times)
	err := histogram.Fprintf(os.Stdout, hist, histogram.Linear(40), func(v float64) string {
		return p.Sprintf("% 11dns", time.Duration(v).Nanoseconds())
	})
	if err != nil {
		pkg.LogWarn(componentCLI, "histogram failed", "error", err)
	}
}
