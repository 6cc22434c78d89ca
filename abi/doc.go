// Package abi defines the fixed, versioned plugin ABI surface shared by the
// host and plugin sides of clap-runtime.
//
// Everything in this package is plain data: the per-instance function table
// (Plugin), the per-cycle process payload (ProcessData), the closed process
// status set, the event queue handles, and the host descriptor (Host) that a
// plugin may call back into. None of these types carry lifecycle logic; the
// host and plugin packages enforce when each table entry may legally be
// invoked.
//
// A function table entry with a nil func field is an absent optional entry.
// Callers treat absence of an optional entry as automatic success or no-op;
// Process and Activate are required for meaningful use.
package abi
