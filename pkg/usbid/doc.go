// Package usbid looks up USB vendor and product names for the ports found
// during cart discovery.
//
// Names come from the usb.ids database distributed with most Linux systems
// and with usbutils elsewhere. Identities of supported carts are built in,
// so a SummerCart64 is named even when no database is installed.
//
// # Usage
//
//	db := usbid.New()
//	db.Load()
//	db.LookupProduct(0x0403, 0x6014)
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package usbid
