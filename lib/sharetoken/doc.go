// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package sharetoken implements the bearer-secret scheme for calendar
// sharing: secret generation, the digest stored at rest, access scopes,
// and the share-link URL format.
//
// A share secret is a high-entropy random string surfaced to the owner
// exactly once, at creation. The server keeps only its hex SHA-256
// digest; validation recomputes the digest from a presented secret and
// compares. A database leak therefore exposes no usable secrets, and
// the secret itself never appears in logs or listings.
package sharetoken
