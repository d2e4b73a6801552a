// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for on-disk snapshots.
//
// Encoding is Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// logical data always produces identical bytes, which makes snapshot
// checksums stable across writes of unchanged data.
package codec
