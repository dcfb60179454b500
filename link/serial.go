package link

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/ardnew/cartbridge/pkg"
	"github.com/ardnew/cartbridge/pkg/usbid"
)

// USB identity of the SummerCart64's FT232H bridge.
const (
	VendorFTDI   uint16 = 0x0403
	ProductFT232 uint16 = 0x6014
	SerialPrefix        = "SC64"
)

// DefaultBaudRate is ignored by the FT232H in FIFO mode but required by the
// serial driver.
const DefaultBaudRate = 115200

// PortInfo describes a USB serial port found by Discover.
type PortInfo struct {
	Name         string
	VID, PID     uint16
	SerialNumber string
	Vendor       string // from the USB ID database, if available
	Product      string // from the USB ID database, if available
	Cart         bool   // identity matches a SummerCart64
}

// String formats the port for listings.
func (p PortInfo) String() string {
	s := fmt.Sprintf("%s %04x:%04x", p.Name, p.VID, p.PID)
	if p.SerialNumber != "" {
		s += " serial=" + p.SerialNumber
	}
	if p.Vendor != "" || p.Product != "" {
		s += " (" + strings.TrimSpace(p.Vendor+" "+p.Product) + ")"
	}
	return s
}

// IsCart reports whether a USB identity belongs to a SummerCart64.
func IsCart(vid, pid uint16, serialNumber string) bool {
	return vid == VendorFTDI && pid == ProductFT232 && strings.HasPrefix(serialNumber, SerialPrefix)
}

// Discover lists USB serial ports. Names are resolved through db when it is
// non-nil.
func Discover(db *usbid.Database) ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}
	if db != nil {
		db.Load()
	}

	var out []PortInfo
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		info := PortInfo{
			Name:         port.Name,
			VID:          parseID(port.VID),
			PID:          parseID(port.PID),
			SerialNumber: port.SerialNumber,
		}
		if db != nil {
			info.Vendor = db.LookupVendor(info.VID)
			info.Product = db.LookupProduct(info.VID, info.PID)
		}
		info.Cart = IsCart(info.VID, info.PID, info.SerialNumber)
		pkg.LogDebug(pkg.ComponentLink, "found usb port", "port", info.String(), "cart", info.Cart)
		out = append(out, info)
	}
	return out, nil
}

// FindCart returns the first port that identifies as a SummerCart64.
func FindCart(db *usbid.Database) (PortInfo, error) {
	ports, err := Discover(db)
	if err != nil {
		return PortInfo{}, err
	}
	for _, p := range ports {
		if p.Cart {
			return p, nil
		}
	}
	return PortInfo{}, pkg.ErrNoDevice
}

func parseID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}

// Open opens the serial port and starts a link over it. DTR is raised so the
// cart accepts commands, and stale input is discarded.
func Open(portName string) (*Link, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	if err := port.SetDTR(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("set DTR on %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		pkg.LogWarn(pkg.ComponentLink, "reset input buffer failed", "port", portName, "error", err)
	}
	pkg.LogInfo(pkg.ComponentLink, "port opened", "port", portName)
	return New(port), nil
}
