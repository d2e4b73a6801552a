// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for Setefiscal
// binaries. Values are injected at build time via -ldflags.
package version
