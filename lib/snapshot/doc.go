// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot converts raw status-poll payloads into immutable
// output-state tables.
//
// A status response carries 128 bytes: 16 modules of 8 one-byte
// output levels in module order. By convention 0 is off, 255 is fully
// on, and anything between is a partial (dimmer) level - the builder
// does not enforce that convention, it belongs to the device layer.
// Which (module, output) pair is a light, a shutter relay, or unused
// is the device catalog's concern, not this package's.
package snapshot
