// Package ir provides the shared value and record types for Keystone.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - No float types; numbers are int64 or decimal strings
//   - Canonical JSON (RFC 8785) is the only hashed/persisted encoding
//   - Futures reference each other by FutureRef (module, id), never by pointer
//   - All JSON tags use snake_case
package ir
