// Package ir provides the foundation types shared by every relq compilation
// stage.
//
// This package contains type descriptors, the compile error taxonomy, and the
// canonical encoding used for command snapshots. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational layer
// with no circular dependencies.
//
// Key design constraints:
//   - Types are plain values; two types are equal when their descriptors are equal
//   - Every compile failure is an *ir.CompileError carrying one of four codes
//   - Canonical encoding sorts object keys by UTF-16 code units (RFC 8785)
package ir
