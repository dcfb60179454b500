package sim

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/ardnew/cartbridge/cart/summercart64"
	"github.com/ardnew/cartbridge/pkg"
)

// NewWithSDRAMFile returns a cart whose SDRAM window is the file at path,
// memory-mapped read-write. The file is created or resized to the window
// size. Call Close to unmap it.
func NewWithSDRAMFile(path string) (*Cart, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sdram file: %w", err)
	}
	if err := f.Truncate(int64(summercart64.BufferSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("size sdram file: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map sdram file: %w", err)
	}
	pkg.LogInfo(pkg.ComponentSim, "sdram mapped", "path", path, "size", len(m))

	unmap := func() error {
		if err := m.Flush(); err != nil {
			m.Unmap()
			f.Close()
			return err
		}
		if err := m.Unmap(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return newCart([]byte(m), unmap), nil
}
