// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway enforces share-token access to calendar data.
//
// Validator turns a presented secret into an access decision. The
// decision is deliberately binary: a caller learns valid-with-scope or
// invalid, never why. Wrong secret, wrong calendar, revoked, expired,
// client-identity mismatch, and storage failure all produce the same
// generic denial, so probing the endpoint yields no information about
// which tokens or calendars exist.
//
// Gateway is the only data path a client session has. Every read and
// every write re-validates the token against storage first; there is
// no session state that outlives a revocation.
package gateway
