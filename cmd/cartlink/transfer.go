package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardnew/cartbridge/pkg"
)

func runSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	conn := addConnectFlags(fs)
	typeName := fs.String("type", "text", "Datatype name or number")
	file := fs.String("file", "", "Send the contents of a file (- for stdin) instead of the arguments")
	if err := fs.Parse(args); err != nil {
		return err
	}

	datatype, err := pkg.ParseDatatype(*typeName)
	if err != nil {
		return err
	}

	var data []byte
	switch *file {
	case "":
		data = []byte(strings.Join(fs.Args(), " "))
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return err
	}

	l, err := conn.openIdentified(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	cctx, cancel := context.WithTimeout(ctx, *conn.timeout)
	defer cancel()
	start := time.Now()
	if err := l.Send(cctx, datatype, data); err != nil {
		return err
	}
	pkg.LogInfo(componentCLI, "message sent",
		"datatype", datatype.String(),
		"size", len(data),
		"elapsed", time.Since(start))
	return nil
}

func runRecv(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recv", flag.ContinueOnError)
	conn := addConnectFlags(fs)
	count := fs.Int("n", 0, "Stop after this many messages (0 for no limit)")
	dir := fs.String("dir", "", "Save non-text messages to files in this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l, err := conn.openIdentified(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	for i := 0; *count == 0 || i < *count; i++ {
		m, err := l.Receive(ctx)
		if err != nil {
			if errors.Is(err, pkg.ErrNotRunning) {
				return nil
			}
			return err
		}

		switch {
		case m.Datatype == pkg.DatatypeText:
			os.Stdout.Write(m.Data)
		case m.Datatype == pkg.DatatypeHeartbeat && len(m.Data) >= 4:
			pkg.LogInfo(componentCLI, "heartbeat",
				"protocol", int(m.Data[0])<<8|int(m.Data[1]),
				"version", int(m.Data[2])<<8|int(m.Data[3]))
		case *dir != "":
			name := filepath.Join(*dir, fmt.Sprintf("%s-%s.bin", time.Now().UTC().Format("20060102T150405.000000"), m.Datatype))
			if err := os.WriteFile(name, m.Data, 0o644); err != nil {
				return err
			}
			pkg.LogInfo(componentCLI, "message saved", "datatype", m.Datatype.String(), "file", name)
		default:
			fmt.Printf("%s %d bytes\n%s", m.Datatype, len(m.Data), hex.Dump(m.Data))
		}
	}
	return nil
}
