// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// everything that persists structured data.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer form, no indefinite-length items. The
// same snapshot always produces identical bytes, so journal
// checkpoints can be compared and deduplicated byte-wise.
package codec
