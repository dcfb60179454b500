// Package pkg provides shared utilities for the cartbridge driver and its
// host-side tooling.
//
// This package contains the vocabulary used on both ends of the
// cartridge link, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for bridge and link failures
//   - The [Header] word that frames every message
//   - Block and alignment constants shared by chunked transfers
//
// # Logging
//
// The logging subsystem wraps [log/slog] with bridge-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDetect, "cart detected", "kind", "sc64")
//
// # Errors
//
// Common bridge errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrBusyTimeout) {
//	    // previous write never completed
//	}
//
// # Headers
//
// A message header packs an 8-bit datatype and a 24-bit length into a
// single word:
//
//	h := pkg.NewHeader(pkg.DatatypeText, 12)
//	h.Datatype() // DatatypeText
//	h.Length()   // 12
package pkg
