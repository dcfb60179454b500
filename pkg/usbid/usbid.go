package usbid

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the standard locations for the USB ID database.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
	"/usr/local/share/usb.ids",
	"/opt/homebrew/share/usb.ids",
}

// builtinVendors and builtinProducts name the carts the bridge supports.
var (
	builtinVendors = map[uint16]string{
		0x0403: "Future Technology Devices International, Ltd",
	}
	builtinProducts = map[uint32]string{
		0x0403_6014: "FT232H Single HS USB-UART/FIFO IC (SummerCart64)",
	}
)

// Database caches vendor and product names from the USB ID database.
type Database struct {
	vendors  map[uint16]string // VID -> vendor name
	products map[uint32]string // (VID<<16)|PID -> product name
	loaded   bool
	found    bool
	mu       sync.RWMutex
	paths    []string
}

// New creates a database that searches the default paths.
func New() *Database {
	return NewWithPaths(DefaultPaths)
}

// NewWithPaths creates a database that searches the specified paths.
func NewWithPaths(paths []string) *Database {
	return &Database{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
		paths:    paths,
	}
}

// Load parses the first database file found. Subsequent calls do nothing.
//
// Returns true if a database file was parsed by this or an earlier call.
func (db *Database) Load() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loaded {
		return db.found
	}
	// Mark as loaded even if no file is found to prevent repeated searches.
	db.loaded = true

	for _, path := range db.paths {
		file, err := os.Open(path)
		if err != nil {
			continue
		}
		db.parse(file)
		file.Close()
		db.found = true
		return true
	}
	return false
}

// Parse reads database entries from r, adding to any already loaded.
func (db *Database) Parse(r io.Reader) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.loaded = true
	db.parse(r)
}

// parse reads the usb.ids format: vendor lines "xxxx  Name" followed by
// tab-indented product lines "\txxxx  Name".
func (db *Database) parse(r io.Reader) {
	scanner := bufio.NewScanner(r)
	var currentVID uint16
	var haveVendor bool

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		if line[0] == '\t' {
			if !haveVendor {
				continue
			}
			line = line[1:]
			if len(line) < 6 {
				continue
			}
			pid, err := strconv.ParseUint(line[:4], 16, 16)
			if err != nil {
				continue
			}
			if line[4] == ' ' {
				db.products[uint32(currentVID)<<16|uint32(pid)] = strings.TrimLeft(line[5:], " ")
			}
			continue
		}

		if len(line) < 6 {
			haveVendor = false
			continue
		}
		vid, err := strconv.ParseUint(line[:4], 16, 16)
		if err != nil {
			// Class, language and other sections end the vendor list.
			haveVendor = false
			continue
		}
		currentVID, haveVendor = uint16(vid), true
		if line[4] == ' ' {
			db.vendors[currentVID] = strings.TrimLeft(line[5:], " ")
		}
	}
}

// LookupVendor returns the vendor name for vid, or an empty string.
func (db *Database) LookupVendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if name, ok := db.vendors[vid]; ok {
		return name
	}
	return builtinVendors[vid]
}

// LookupProduct returns the product name for vid:pid, or an empty string.
// Built-in cart names take precedence over the database.
func (db *Database) LookupProduct(vid, pid uint16) string {
	key := uint32(vid)<<16 | uint32(pid)
	if name, ok := builtinProducts[key]; ok {
		return name
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.products[key]
}

// IsLoaded returns true if a load was attempted.
func (db *Database) IsLoaded() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.loaded
}

// VendorCount returns the number of vendors parsed.
func (db *Database) VendorCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vendors)
}

// ProductCount returns the number of products parsed.
func (db *Database) ProductCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.products)
}
