// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Command fiscal is the accountant's CLI for a fiscald server: it
// manages calendars and their events, issues and revokes client share
// tokens, and can open a share link the way a client would.
//
// Owner commands authenticate with an API key (--api-key or
// $FISCAL_API_KEY); 'fiscal client open' needs only the share link,
// whose token carries the capability.
package main
