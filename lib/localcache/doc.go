// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package localcache stores per-calendar snapshot files for the client
// session's cache-aside path.
//
// A snapshot is the last aggregate a session successfully read,
// CBOR-encoded, zstd-compressed, and checksummed with keyed BLAKE3.
// Load returns the data together with the time it was stored so the
// caller can label it stale; a corrupted or checksum-mismatched file
// behaves exactly like a missing one. The cache is an availability
// aid, never an authority: nothing read from it is ever presented as
// confirmed server state.
package localcache
