package sim

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardnew/cartbridge/cart/summercart64"
	"github.com/ardnew/cartbridge/link"
	"github.com/ardnew/cartbridge/pkg"
)

func unlock(c *Cart) {
	c.Store32(summercart64.RegKey, summercart64.KeyReset)
	c.Store32(summercart64.RegKey, summercart64.KeyUnlock1)
	c.Store32(summercart64.RegKey, summercart64.KeyUnlock2)
}

func TestKeySequence(t *testing.T) {
	tests := []struct {
		name string
		keys []uint32
		want bool
	}{
		{"full", []uint32{summercart64.KeyReset, summercart64.KeyUnlock1, summercart64.KeyUnlock2}, true},
		{"no reset", []uint32{summercart64.KeyUnlock1, summercart64.KeyUnlock2}, false},
		{"swapped", []uint32{summercart64.KeyReset, summercart64.KeyUnlock2, summercart64.KeyUnlock1}, false},
		{"garbage after", []uint32{summercart64.KeyReset, summercart64.KeyUnlock1, summercart64.KeyUnlock2, 0x1234}, false},
		{"relock and unlock", []uint32{0x1234, summercart64.KeyReset, summercart64.KeyUnlock1, summercart64.KeyUnlock2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			for _, k := range tt.keys {
				c.Store32(summercart64.RegKey, k)
			}
			if got := c.Unlocked(); got != tt.want {
				t.Errorf("Unlocked() = %v, want %v", got, tt.want)
			}
			id := c.Load32(summercart64.RegIdentifier)
			if tt.want && id != summercart64.Identifier {
				t.Errorf("identifier = 0x%08X", id)
			}
			if !tt.want && id != 0 {
				t.Errorf("locked identifier = 0x%08X, want 0", id)
			}
		})
	}
}

func TestAbsent(t *testing.T) {
	c := New()
	c.SetPresent(false)
	unlock(c)

	if c.Unlocked() {
		t.Error("absent cart unlocked")
	}
	if v := c.Load32(summercart64.RegIdentifier); v != 0 {
		t.Errorf("open bus read 0x%08X", v)
	}

	p := pkg.NewStagingBuffer()
	p[0] = 0xFF
	if err := c.DMALoad(summercart64.BufferAddr, p); err != nil {
		t.Fatalf("DMALoad() error = %v", err)
	}
	if p[0] != 0 {
		t.Error("open bus DMA did not zero-fill")
	}
}

func TestConfigSet(t *testing.T) {
	c := New()
	unlock(c)
	exec := summercart64.NewExecutor(c)

	if prev := exec.SetWritable(true); prev {
		t.Error("SetWritable(true) reported previously enabled")
	}
	if !c.Writable() {
		t.Fatal("ROM writes not enabled")
	}
	if prev := exec.SetWritable(false); !prev {
		t.Error("SetWritable(false) reported previously disabled")
	}
	if c.Writable() {
		t.Error("ROM writes still enabled")
	}

	args := [2]uint32{0x99, 1}
	if err := exec.Run(summercart64.CmdConfigSet, &args, nil); !errors.Is(err, pkg.ErrCommand) {
		t.Errorf("unknown config id = %v, want ErrCommand", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	c := New()
	unlock(c)
	exec := summercart64.NewExecutor(c)

	if err := exec.Run(summercart64.Command('Z'), nil, nil); !errors.Is(err, pkg.ErrCommand) {
		t.Errorf("Run('Z') = %v, want ErrCommand", err)
	}
}

func TestCommandLatency(t *testing.T) {
	c := New()
	unlock(c)
	c.SetCommandLatency(4)
	exec := summercart64.NewExecutor(c)

	c.ResetStats()
	exec.WriteBusy()
	// 4 busy status reads, 1 idle read and 2 result loads
	if got := c.Stats().RegisterLoads; got != 7 {
		t.Errorf("register loads = %d, want 7", got)
	}
}

func TestDMA_Constraints(t *testing.T) {
	c := New()
	c.SetWritable(true)
	stage := pkg.NewStagingBuffer()

	tests := []struct {
		name string
		addr uint32
		p    []byte
		want error
	}{
		{"aligned", summercart64.BufferAddr, stage[:16], nil},
		{"odd length", summercart64.BufferAddr, stage[:15], pkg.ErrAlignment},
		{"odd address", summercart64.BufferAddr + 1, stage[:16], pkg.ErrAlignment},
		{"unaligned buffer", summercart64.BufferAddr, stage[2:18], pkg.ErrAlignment},
		{"below window", summercart64.BufferAddr - 16, stage[:16], pkg.ErrOutOfRange},
		{"past window", summercart64.BufferAddr + summercart64.BufferSize - 8, stage[:16], pkg.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.DMAStore(tt.addr, tt.p)
			if tt.want == nil && err != nil {
				t.Fatalf("DMAStore() error = %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("DMAStore() = %v, want %v", err, tt.want)
			}
		})
	}
	if got := c.Stats().Faults; got != len(tests)-1 {
		t.Errorf("faults = %d, want %d", got, len(tests)-1)
	}
}

func TestDMA_DroppedWhenWriteDisabled(t *testing.T) {
	c := New()
	stage := pkg.NewStagingBuffer()
	copy(stage, "payload!")

	if err := c.DMAStore(summercart64.BufferAddr, stage[:8]); err != nil {
		t.Fatalf("DMAStore() error = %v", err)
	}
	s := c.Stats()
	if s.DroppedStores != 1 || len(s.DMAStores) != 1 {
		t.Errorf("stats = %+v", s)
	}

	out := pkg.NewStagingBuffer()
	c.DMALoad(summercart64.BufferAddr, out[:8])
	if bytes.Equal(out[:8], stage[:8]) {
		t.Error("store reached sdram with writes disabled")
	}

	c.SetWritable(true)
	c.DMAStore(summercart64.BufferAddr, stage[:8])
	c.DMALoad(summercart64.BufferAddr, out[:8])
	if !bytes.Equal(out[:8], stage[:8]) {
		t.Errorf("read back % x, want % x", out[:8], stage[:8])
	}
}

func TestHostQueues(t *testing.T) {
	c := New()
	if err := c.HostSend(pkg.DatatypeText, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.HostSend(pkg.DatatypeText, make([]byte, summercart64.BufferSize+1)); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("HostSend() past the sdram window = %v", err)
	}
	if in, out := c.HostPending(); in != 1 || out != 0 {
		t.Errorf("HostPending() = %d, %d", in, out)
	}
	if _, ok := c.HostReceive(); ok {
		t.Error("HostReceive() returned a message from an empty outbox")
	}
}

func TestUSBRead_TooShort(t *testing.T) {
	c := New()
	unlock(c)
	c.HostSend(pkg.DatatypeText, []byte("four"))
	exec := summercart64.NewExecutor(c)

	args := [2]uint32{summercart64.BufferAddr, 2}
	if err := exec.Run(summercart64.CmdUSBRead, &args, nil); !errors.Is(err, pkg.ErrCommand) {
		t.Errorf("short read = %v, want ErrCommand", err)
	}
	if in, _ := c.HostPending(); in != 1 {
		t.Error("short read consumed the message")
	}
}

func TestSDRAMFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdram.bin")

	c, err := NewWithSDRAMFile(path)
	if err != nil {
		t.Fatalf("NewWithSDRAMFile() error = %v", err)
	}
	c.SetWritable(true)
	stage := pkg.NewStagingBuffer()
	copy(stage, "persisted")
	if err := c.DMAStore(summercart64.BufferAddr+64, stage[:10]); err != nil {
		t.Fatalf("DMAStore() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	c, err = NewWithSDRAMFile(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer c.Close()
	out := pkg.NewStagingBuffer()
	if err := c.DMALoad(summercart64.BufferAddr+64, out[:10]); err != nil {
		t.Fatalf("DMALoad() error = %v", err)
	}
	if string(out[:9]) != "persisted" {
		t.Errorf("read back %q", out[:9])
	}
}

func TestServeHost(t *testing.T) {
	c := New()
	host, dev := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- c.ServeHost(ctx, dev) }()

	l := link.New(host)
	defer l.Close()

	rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer rcancel()

	id, err := l.Identify(rctx)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if id != summercart64.Identifier {
		t.Errorf("Identify() = 0x%08X", id)
	}

	if err := l.Send(rctx, pkg.DatatypeRawBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if in, _ := c.HostPending(); in != 1 {
		t.Errorf("inbox holds %d messages, want 1", in)
	}

	if _, err := l.Command(rctx, link.Request{ID: 'z'}); !errors.Is(err, pkg.ErrCommand) {
		t.Errorf("unsupported command = %v, want ErrCommand", err)
	}

	// A console write is pushed to the host as a packet.
	unlock(c)
	c.SetWritable(true)
	stage := pkg.NewStagingBuffer()
	copy(stage, "hi")
	c.DMAStore(summercart64.BufferAddr, stage[:2])
	exec := summercart64.NewExecutor(c)
	args := [2]uint32{summercart64.BufferAddr, uint32(pkg.NewHeader(pkg.DatatypeText, 2))}
	if err := exec.Run(summercart64.CmdUSBWrite, &args, nil); err != nil {
		t.Fatalf("usb-write error = %v", err)
	}

	m, err := l.Receive(rctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if m.Datatype != pkg.DatatypeText || string(m.Data) != "hi" {
		t.Errorf("Receive() = %+v", m)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("ServeHost() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeHost did not stop after cancel")
	}
}
