package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ardnew/cartbridge/link"
	"github.com/ardnew/cartbridge/pkg"
)

// lineReader reads input lines and reports io.EOF when input ends.
type lineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct {
	s *bufio.Scanner
}

func (r scannerReader) ReadLine() (string, error) {
	if r.s.Scan() {
		return r.s.Text(), nil
	}
	if err := r.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// runConsole sends each input line as a text message and prints text
// received from the console. On a terminal, input is edited with a prompt
// that survives incoming output; Ctrl+D exits.
func runConsole(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	conn := addConnectFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	l, err := conn.openIdentified(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	var (
		in  lineReader
		out io.Writer = os.Stdout
	)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(fd, state)

		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, "> ")
		in, out = t, t
	} else {
		in = scannerReader{bufio.NewScanner(os.Stdin)}
	}

	// Stdin cannot be interrupted, so it is read outside the group.
	lines := make(chan string)
	inputDone := make(chan error, 1)
	go func() {
		for {
			line, err := in.ReadLine()
			if err != nil {
				inputDone <- err
				return
			}
			lines <- line
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			m, err := l.Receive(ctx)
			if err != nil {
				return err
			}
			printMessage(out, m)
		}
	})

	g.Go(func() error {
		for {
			select {
			case line := <-lines:
				cctx, cancel := context.WithTimeout(ctx, *conn.timeout)
				err := l.Send(cctx, pkg.DatatypeText, []byte(line+"\n"))
				cancel()
				if err != nil {
					return err
				}
			case err := <-inputDone:
				if errors.Is(err, io.EOF) {
					// Closing the link stops the receiver.
					l.Close()
					return nil
				}
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, pkg.ErrNotRunning) {
		return nil
	}
	return err
}

func printMessage(w io.Writer, m link.Message) {
	switch m.Datatype {
	case pkg.DatatypeText:
		text := string(m.Data)
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		io.WriteString(w, text)
	default:
		fmt.Fprintf(w, "[%s, %d bytes]\n", m.Datatype, len(m.Data))
	}
}
