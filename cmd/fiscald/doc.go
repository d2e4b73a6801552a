// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// fiscald is the calendar service daemon. It serves the JSON HTTP API:
// the token validation RPC, the token-guarded client read/write path,
// and the owner-facing calendar and share-token management surface.
//
// Configuration comes from a single file (--config flag or
// FISCALD_CONFIG); see lib/config for the format.
package main
