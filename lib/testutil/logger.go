// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"log/slog"
	"testing"
)

// Logger returns a slog.Logger that writes through t.Log, so component
// output is attached to the failing test instead of interleaved on
// stderr.
func Logger(t *testing.T) *slog.Logger {
	return slog.New(testHandler{t: t})
}

type testHandler struct {
	t     *testing.T
	attrs []slog.Attr
}

func (h testHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h testHandler) Handle(_ context.Context, record slog.Record) error {
	h.t.Helper()
	line := record.Level.String() + " " + record.Message
	appendAttr := func(attr slog.Attr) bool {
		line += " " + attr.Key + "=" + attr.Value.String()
		return true
	}
	for _, attr := range h.attrs {
		appendAttr(attr)
	}
	record.Attrs(appendAttr)
	h.t.Log(line)
	return nil
}

func (h testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)
	return h
}

func (h testHandler) WithGroup(string) slog.Handler { return h }
