// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code injects
// Real(); tests inject Fake() and advance time deterministically. Token
// expiry checks and the session debounce timer both run off an injected
// Clock so that expiry and coalescing behavior can be tested without
// real sleeps.
package clock
