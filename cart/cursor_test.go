package cart

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ardnew/cartbridge/cart/summercart64"
	"github.com/ardnew/cartbridge/pkg"
)

// scriptedBackend serves one message and fails block fetches at or past
// failAt.
type scriptedBackend struct {
	header pkg.Header
	data   []byte
	failAt int
	polls  int
}

func (b *scriptedBackend) Write([]byte, pkg.Datatype, []byte, time.Duration) error {
	return nil
}

func (b *scriptedBackend) Poll() (pkg.Header, error) {
	b.polls++
	h := b.header
	b.header = 0
	return h, nil
}

func (b *scriptedBackend) ReadBlock(stage []byte, offset int) error {
	if offset >= b.failAt {
		return pkg.ErrCommand
	}
	copy(stage, b.data[offset:])
	return nil
}

func TestPoll_Empty(t *testing.T) {
	d, c := newTestDriver(t)

	if h := d.Poll(); h != 0 {
		t.Fatalf("Poll() = %v, want 0", h)
	}
	if n := c.Stats().CommandCount(summercart64.CmdUSBRead); n != 0 {
		t.Errorf("usb-read issued %d times with nothing pending", n)
	}
	if _, err := d.Read(make([]byte, 4)); err != io.EOF {
		t.Errorf("Read() = %v, want io.EOF", err)
	}
}

func TestPoll_Idempotent(t *testing.T) {
	d, c := newTestDriver(t)
	c.HostSend(pkg.DatatypeText, pattern(600))

	want := pkg.NewHeader(pkg.DatatypeText, 600)
	if h := d.Poll(); h != want {
		t.Fatalf("Poll() = %v, want %v", h, want)
	}
	if h := d.Poll(); h != want {
		t.Errorf("second Poll() = %v, want %v", h, want)
	}

	s := c.Stats()
	if n := s.CommandCount(summercart64.CmdUSBReadStatus); n != 2 {
		// one status query before the read, one while waiting on it
		t.Errorf("usb-read-status issued %d times, want 2", n)
	}
	if n := s.CommandCount(summercart64.CmdUSBRead); n != 1 {
		t.Errorf("usb-read issued %d times, want 1", n)
	}
	if d.Datatype() != pkg.DatatypeText || d.Size() != 600 || d.Pending() != 600 {
		t.Errorf("cursor = %v/%d/%d", d.Datatype(), d.Size(), d.Pending())
	}
}

func TestPoll_ReportsResidue(t *testing.T) {
	d, c := newTestDriver(t)
	c.HostSend(pkg.DatatypeRawBinary, pattern(600))
	d.Poll()

	if _, err := d.Read(make([]byte, 100)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := pkg.NewHeader(pkg.DatatypeRawBinary, 500)
	if h := d.Poll(); h != want {
		t.Errorf("Poll() = %v, want %v", h, want)
	}
}

func TestRead_LazyBlocks(t *testing.T) {
	d, c := newTestDriver(t)
	data := pattern(600)
	c.HostSend(pkg.DatatypeRawBinary, data)
	d.Poll()

	got := make([]byte, 0, 600)
	buf := make([]byte, 300)
	for i := 0; i < 2; i++ {
		n, err := d.Read(buf)
		if err != nil || n != 300 {
			t.Fatalf("Read() = %d, %v", n, err)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, data) {
		t.Error("payload mismatch")
	}

	loads := c.Stats().DMALoads
	wantAddrs := []uint32{summercart64.BufferAddr, summercart64.BufferAddr + pkg.BlockSize}
	if len(loads) != len(wantAddrs) {
		t.Fatalf("%d block loads, want %d", len(loads), len(wantAddrs))
	}
	for i, a := range wantAddrs {
		if loads[i].Addr != a || loads[i].Length != pkg.BlockSize {
			t.Errorf("load %d = %+v, want 0x%08X", i, loads[i], a)
		}
	}

	if _, err := d.Read(buf); err != io.EOF {
		t.Errorf("Read() after drain = %v, want io.EOF", err)
	}
}

func TestRead_SmallReadsShareBlock(t *testing.T) {
	d, c := newTestDriver(t)
	data := pattern(2 * pkg.BlockSize)
	c.HostSend(pkg.DatatypeRawBinary, data)
	d.Poll()

	var got []byte
	one := make([]byte, 1)
	for {
		n, err := d.Read(one)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, one[:n]...)
	}
	if !bytes.Equal(got, data) {
		t.Error("payload mismatch")
	}
	if n := len(c.Stats().DMALoads); n != 2 {
		t.Errorf("%d block loads, want 2", n)
	}
}

func TestRead_ReadAll(t *testing.T) {
	d, c := newTestDriver(t)
	data := pattern(3*pkg.BlockSize + 7)
	c.HostSend(pkg.DatatypeRawBinary, data)
	d.Poll()

	got, err := io.ReadAll(d)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadAll() returned %d bytes, want %d", len(got), len(data))
	}
}

func TestSkipRewind(t *testing.T) {
	d, c := newTestDriver(t)
	data := pattern(600)
	c.HostSend(pkg.DatatypeRawBinary, data)
	d.Poll()

	tests := []struct {
		name string
		op   func()
		want int
	}{
		{"skip zero", func() { d.Skip(0) }, 600},
		{"skip negative", func() { d.Skip(-1) }, 600},
		{"rewind negative", func() { d.Rewind(-5) }, 600},
		{"skip", func() { d.Skip(100) }, 500},
		{"rewind", func() { d.Rewind(40) }, 540},
		{"rewind past start", func() { d.Rewind(1000) }, 600},
		{"skip past end", func() { d.Skip(1000) }, 0},
		{"rewind after end", func() { d.Rewind(10) }, 10},
	}
	for _, tt := range tests {
		tt.op()
		if got := d.Pending(); got != tt.want {
			t.Errorf("%s: Pending() = %d, want %d", tt.name, got, tt.want)
		}
	}

	buf := make([]byte, 10)
	if n, err := d.Read(buf); err != nil || n != 10 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if !bytes.Equal(buf, data[590:]) {
		t.Errorf("Read() after rewind = % x, want % x", buf, data[590:])
	}

	d.Rewind(-5)
	if got := d.Pending(); got != 0 {
		t.Fatalf("Rewind(-5) after drain: Pending() = %d, want 0", got)
	}
	if err := d.Write(pkg.DatatypeText, []byte("ok")); err != nil {
		t.Errorf("Write() after negative rewind = %v", err)
	}
}

func TestSkip_DoesNotFetch(t *testing.T) {
	d, c := newTestDriver(t)
	c.HostSend(pkg.DatatypeRawBinary, pattern(3*pkg.BlockSize))
	d.Poll()

	d.Skip(2*pkg.BlockSize + 5)
	if n := len(c.Stats().DMALoads); n != 0 {
		t.Fatalf("Skip() fetched %d blocks", n)
	}
	d.Read(make([]byte, 1))
	loads := c.Stats().DMALoads
	if len(loads) != 1 || loads[0].Addr != summercart64.BufferAddr+2*pkg.BlockSize {
		t.Errorf("loads after skip = %+v", loads)
	}
}

func TestRewind_Reread(t *testing.T) {
	d, c := newTestDriver(t)
	data := pattern(600)
	c.HostSend(pkg.DatatypeRawBinary, data)
	d.Poll()

	first, _ := io.ReadAll(d)
	d.Rewind(600)
	second, err := io.ReadAll(d)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(first, data) || !bytes.Equal(second, data) {
		t.Error("re-read payload mismatch")
	}
}

func TestPurge(t *testing.T) {
	d, c := newTestDriver(t)
	c.HostSend(pkg.DatatypeText, []byte("first message"))
	c.HostSend(pkg.DatatypeRawBinary, []byte("second"))

	d.Poll()
	d.Read(make([]byte, 5))
	d.Purge()

	if d.Pending() != 0 || d.Size() != 0 {
		t.Errorf("cursor after Purge = %d/%d", d.Pending(), d.Size())
	}
	want := pkg.NewHeader(pkg.DatatypeRawBinary, 6)
	if h := d.Poll(); h != want {
		t.Fatalf("Poll() after Purge = %v, want %v", h, want)
	}
	got, _ := io.ReadAll(d)
	if string(got) != "second" {
		t.Errorf("read %q, want %q", got, "second")
	}
}

func TestPoll_NextAfterDrain(t *testing.T) {
	d, c := newTestDriver(t)
	c.HostSend(pkg.DatatypeText, []byte("one"))
	c.HostSend(pkg.DatatypeText, []byte("two!"))

	d.Poll()
	io.ReadAll(d)

	if err := d.Write(pkg.DatatypeText, []byte("ack")); err != nil {
		t.Errorf("Write() after drain = %v", err)
	}
	if h := d.Poll(); h != pkg.NewHeader(pkg.DatatypeText, 4) {
		t.Errorf("Poll() = %v, want text[4]", h)
	}
}

func TestPoll_ReadCommandFails(t *testing.T) {
	d, c := newTestDriver(t)
	c.HostSend(pkg.DatatypeText, []byte("dropped"))
	c.FailNext(summercart64.CmdUSBRead, 1)

	if h := d.Poll(); h != 0 {
		t.Errorf("Poll() = %v, want 0", h)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after failed read", d.Pending())
	}
	if err := d.Write(pkg.DatatypeText, []byte("x")); err != nil {
		t.Errorf("Write() = %v, want write allowed", err)
	}
}

func TestPoll_ReadLatency(t *testing.T) {
	d, c := newTestDriver(t)
	c.SetReadLatency(5)
	c.SetCommandLatency(2)
	c.HostSend(pkg.DatatypeText, []byte("late"))

	if h := d.Poll(); h != pkg.NewHeader(pkg.DatatypeText, 4) {
		t.Fatalf("Poll() = %v", h)
	}
	got, _ := io.ReadAll(d)
	if string(got) != "late" {
		t.Errorf("read %q, want %q", got, "late")
	}
}

func TestRead_FetchFailure(t *testing.T) {
	data := pattern(700)
	b := &scriptedBackend{
		header: pkg.NewHeader(pkg.DatatypeRawBinary, len(data)),
		data:   data,
		failAt: pkg.BlockSize,
	}
	d := &Driver{backend: b, stage: pkg.NewStagingBuffer(), cur: cursor{block: noBlock}}
	d.Poll()

	buf := make([]byte, 700)
	n, err := d.Read(buf)
	if !errors.Is(err, pkg.ErrCommand) {
		t.Fatalf("Read() error = %v, want ErrCommand", err)
	}
	if n != pkg.BlockSize || !bytes.Equal(buf[:n], data[:n]) {
		t.Errorf("Read() returned %d bytes before failing, want %d", n, pkg.BlockSize)
	}
	if d.Pending() != 700-pkg.BlockSize {
		t.Errorf("Pending() = %d", d.Pending())
	}

	// The failed block is retried on the next call.
	b.failAt = len(data)
	n, err = d.Read(buf)
	if err != nil || n != 700-pkg.BlockSize {
		t.Fatalf("retry Read() = %d, %v", n, err)
	}
	if !bytes.Equal(buf[:n], data[pkg.BlockSize:]) {
		t.Error("retry payload mismatch")
	}
	if b.polls != 1 {
		t.Errorf("backend polled %d times, want 1", b.polls)
	}
}
