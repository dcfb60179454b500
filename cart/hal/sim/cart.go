package sim

import (
	"fmt"
	"sync"

	"github.com/ardnew/cartbridge/cart/hal"
	"github.com/ardnew/cartbridge/cart/summercart64"
	"github.com/ardnew/cartbridge/pkg"
)

var _ hal.Bus = (*Cart)(nil)

// Message is one framed message crossing the simulated USB link.
type Message struct {
	Datatype pkg.Datatype
	Data     []byte
}

// Transfer records one DMA transfer.
type Transfer struct {
	Addr   uint32
	Length int
}

// Stats counts bus activity since the last ResetStats.
type Stats struct {
	RegisterLoads  int
	RegisterStores int
	Commands       []summercart64.Command
	DMAStores      []Transfer
	DMALoads       []Transfer
	DroppedStores  int // DMA stores ignored because ROM writes were disabled
	Writebacks     int
	Invalidates    int
	Faults         int
}

// CommandCount returns how many times cmd was issued.
func (s Stats) CommandCount(cmd summercart64.Command) int {
	n := 0
	for _, c := range s.Commands {
		if c == cmd {
			n++
		}
	}
	return n
}

// unlock progress through the key sequence.
const (
	keyLocked = iota
	keyReset
	keyHalf
	keyUnlocked
)

// Cart is a simulated SummerCart64 attached to a simulated bus. All methods
// are safe for concurrent use.
type Cart struct {
	mutex sync.Mutex

	present bool
	key     int

	// register file
	data   [2]uint32
	status summercart64.Status

	// command timing and failure injection
	cmdLatency   int // status loads that still report busy after a command
	busyLeft     int
	failNext     map[summercart64.Command]int
	writeLatency int // usb-write-status polls that report busy after a write
	writeBusy    int
	writeStuck   bool
	readLatency  int // usb-read-status polls that report busy after a read
	readBusy     int

	writable bool
	sdram    []byte
	unmap    func() error

	inbox  []Message // PC -> console
	outbox []Message // console -> PC
	notify chan struct{}

	stats Stats
}

// New returns a present, locked cart with heap-backed SDRAM.
func New() *Cart {
	return newCart(make([]byte, summercart64.BufferSize), nil)
}

func newCart(sdram []byte, unmap func() error) *Cart {
	return &Cart{
		present:  true,
		sdram:    sdram,
		unmap:    unmap,
		failNext: make(map[summercart64.Command]int),
		notify:   make(chan struct{}, 1),
	}
}

// Close releases file-backed SDRAM.
func (c *Cart) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.unmap == nil {
		return nil
	}
	err := c.unmap()
	c.unmap = nil
	return err
}

// SetPresent attaches or removes the cart. A removed cart leaves an open
// bus: loads return zero and stores and DMA are ignored.
func (c *Cart) SetPresent(present bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.present = present
}

// SetCommandLatency sets how many status reads report busy after each
// command.
func (c *Cart) SetCommandLatency(reads int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cmdLatency = reads
}

// SetWriteLatency sets how many write-status queries report busy after a
// USB write is accepted.
func (c *Cart) SetWriteLatency(polls int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.writeLatency = polls
}

// SetWriteStuck makes the USB write status report busy until cleared.
func (c *Cart) SetWriteStuck(stuck bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.writeStuck = stuck
}

// SetReadLatency sets how many read-status queries report busy after a USB
// read is started.
func (c *Cart) SetReadLatency(polls int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.readLatency = polls
}

// FailNext makes the next n executions of cmd set the error bit.
func (c *Cart) FailNext(cmd summercart64.Command, n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failNext[cmd] += n
}

// Writable reports the ROM write enable flag.
func (c *Cart) Writable() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.writable
}

// SetWritable sets the ROM write enable flag directly.
func (c *Cart) SetWritable(writable bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.writable = writable
}

// Unlocked reports whether the key sequence has been completed.
func (c *Cart) Unlocked() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.key == keyUnlocked
}

// Stats returns a copy of the activity counters.
func (c *Cart) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	s := c.stats
	s.Commands = append([]summercart64.Command(nil), c.stats.Commands...)
	s.DMAStores = append([]Transfer(nil), c.stats.DMAStores...)
	s.DMALoads = append([]Transfer(nil), c.stats.DMALoads...)
	return s
}

// ResetStats clears the activity counters.
func (c *Cart) ResetStats() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stats = Stats{}
}

// Load32 implements hal.Bus.
func (c *Cart) Load32(addr uint32) uint32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stats.RegisterLoads++

	if !c.present || c.key != keyUnlocked {
		return 0
	}

	switch addr {
	case summercart64.RegStatus:
		if c.busyLeft > 0 {
			c.busyLeft--
			return uint32(c.status | summercart64.StatusBusy)
		}
		return uint32(c.status)
	case summercart64.RegData0:
		return c.data[0]
	case summercart64.RegData1:
		return c.data[1]
	case summercart64.RegIdentifier:
		return summercart64.Identifier
	default:
		return 0
	}
}

// Store32 implements hal.Bus.
func (c *Cart) Store32(addr uint32, value uint32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stats.RegisterStores++

	if !c.present {
		return
	}

	if addr == summercart64.RegKey {
		c.advanceKey(value)
		return
	}
	if c.key != keyUnlocked {
		return
	}

	switch addr {
	case summercart64.RegStatus:
		c.execute(summercart64.Command(value & uint32(summercart64.StatusCmdIDMask)))
	case summercart64.RegData0:
		c.data[0] = value
	case summercart64.RegData1:
		c.data[1] = value
	}
}

func (c *Cart) advanceKey(value uint32) {
	switch {
	case value == summercart64.KeyReset:
		c.key = keyReset
	case value == summercart64.KeyUnlock1 && c.key == keyReset:
		c.key = keyHalf
	case value == summercart64.KeyUnlock2 && c.key == keyHalf:
		c.key = keyUnlocked
	default:
		c.key = keyLocked
	}
}

// execute runs a command to completion immediately; only the busy bit is
// delayed.
func (c *Cart) execute(cmd summercart64.Command) {
	c.stats.Commands = append(c.stats.Commands, cmd)
	c.busyLeft = c.cmdLatency

	failed := false
	switch cmd {
	case summercart64.CmdConfigSet:
		failed = c.configSet()
	case summercart64.CmdUSBWriteStatus:
		c.usbWriteStatus()
	case summercart64.CmdUSBWrite:
		failed = c.usbWrite()
	case summercart64.CmdUSBReadStatus:
		c.usbReadStatus()
	case summercart64.CmdUSBRead:
		failed = c.usbRead()
	default:
		failed = true
	}

	if n := c.failNext[cmd]; n > 0 {
		c.failNext[cmd] = n - 1
		failed = true
	}

	c.status = summercart64.Status(cmd)
	if failed {
		c.status |= summercart64.StatusError
		pkg.LogDebug(pkg.ComponentSim, "command failed", "cmd", cmd.String())
	}
}

func (c *Cart) configSet() bool {
	if c.data[0] != summercart64.ConfigROMWriteEnable {
		return true
	}
	prev := c.writable
	c.writable = c.data[1] != 0
	c.data[0] = 0
	c.data[1] = 0
	if prev {
		c.data[1] = 1
	}
	return false
}

func (c *Cart) usbWriteStatus() {
	c.data[0], c.data[1] = 0, 0
	if c.writeStuck {
		c.data[0] = summercart64.USBWriteStatusBusy
		return
	}
	if c.writeBusy > 0 {
		c.writeBusy--
		c.data[0] = summercart64.USBWriteStatusBusy
	}
}

func (c *Cart) usbWrite() bool {
	addr, header := c.data[0], pkg.Header(c.data[1])
	data, err := c.window(addr, header.Length())
	if err != nil {
		pkg.LogDebug(pkg.ComponentSim, "usb write outside sdram", "addr", fmt.Sprintf("0x%08X", addr), "error", err)
		return true
	}
	c.outbox = append(c.outbox, Message{
		Datatype: header.Datatype(),
		Data:     append([]byte(nil), data...),
	})
	select {
	case c.notify <- struct{}{}:
	default:
	}
	c.writeBusy = c.writeLatency
	return false
}

func (c *Cart) usbReadStatus() {
	c.data[0], c.data[1] = 0, 0
	if c.readBusy > 0 {
		c.readBusy--
		c.data[0] = summercart64.USBReadStatusBusy
		return
	}
	if len(c.inbox) > 0 {
		c.data[0] = uint32(c.inbox[0].Datatype)
		c.data[1] = uint32(len(c.inbox[0].Data))
	}
}

func (c *Cart) usbRead() bool {
	if len(c.inbox) == 0 {
		return true
	}
	addr, length := c.data[0], int(c.data[1])
	msg := c.inbox[0]
	if length < len(msg.Data) {
		return true
	}
	dst, err := c.window(addr, len(msg.Data))
	if err != nil {
		return true
	}
	copy(dst, msg.Data)
	c.inbox = c.inbox[1:]
	c.readBusy = c.readLatency
	return false
}

// window returns the SDRAM bytes backing [addr, addr+n).
func (c *Cart) window(addr uint32, n int) ([]byte, error) {
	if addr < summercart64.BufferAddr {
		return nil, pkg.ErrOutOfRange
	}
	off := int(addr - summercart64.BufferAddr)
	if n < 0 || off+n > len(c.sdram) {
		return nil, pkg.ErrOutOfRange
	}
	return c.sdram[off : off+n], nil
}
