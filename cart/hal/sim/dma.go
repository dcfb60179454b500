package sim

import (
	"fmt"

	"github.com/ardnew/cartbridge/pkg"
)

// checkDMA validates a transfer against the PI DMA constraints.
func (c *Cart) checkDMA(addr uint32, p []byte) ([]byte, error) {
	if !pkg.IsAligned(p, pkg.DMAAlignment) {
		c.stats.Faults++
		return nil, fmt.Errorf("dma buffer not %d-byte aligned: %w", pkg.DMAAlignment, pkg.ErrAlignment)
	}
	if len(p)%pkg.DMALengthAlignment != 0 || addr%pkg.DMALengthAlignment != 0 {
		c.stats.Faults++
		return nil, fmt.Errorf("dma of %d bytes at 0x%08X: %w", len(p), addr, pkg.ErrAlignment)
	}
	mem, err := c.window(addr, len(p))
	if err != nil {
		c.stats.Faults++
		return nil, fmt.Errorf("dma of %d bytes at 0x%08X: %w", len(p), addr, err)
	}
	return mem, nil
}

// DMAStore implements hal.Bus. Stores are dropped while ROM writes are
// disabled, as on hardware.
func (c *Cart) DMAStore(addr uint32, p []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.present {
		return nil
	}
	mem, err := c.checkDMA(addr, p)
	if err != nil {
		return err
	}
	c.stats.DMAStores = append(c.stats.DMAStores, Transfer{Addr: addr, Length: len(p)})
	if !c.writable {
		c.stats.DroppedStores++
		return nil
	}
	copy(mem, p)
	return nil
}

// DMALoad implements hal.Bus.
func (c *Cart) DMALoad(addr uint32, p []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.present {
		for i := range p {
			p[i] = 0
		}
		return nil
	}
	mem, err := c.checkDMA(addr, p)
	if err != nil {
		return err
	}
	c.stats.DMALoads = append(c.stats.DMALoads, Transfer{Addr: addr, Length: len(p)})
	copy(p, mem)
	return nil
}

// Writeback implements hal.Bus. The simulated bus has no cache; calls are
// only counted.
func (c *Cart) Writeback(p []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stats.Writebacks++
}

// Invalidate implements hal.Bus.
func (c *Cart) Invalidate(p []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stats.Invalidates++
}
