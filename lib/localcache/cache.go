// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package localcache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/setefiscal/setefiscal/lib/codec"
	"github.com/setefiscal/setefiscal/lib/fiscal"
)

// ErrNoSnapshot is returned by Load when no usable snapshot exists:
// missing file, undecodable envelope, or checksum mismatch.
var ErrNoSnapshot = errors.New("localcache: no snapshot")

// snapshotDomainKey separates snapshot checksums from any other keyed
// BLAKE3 use. ASCII, zero-padded to the required 32 bytes.
var snapshotDomainKey = [32]byte{
	's', 'e', 't', 'e', 'f', 'i', 's', 'c', 'a', 'l', '.',
	'c', 'a', 'c', 'h', 'e', '.', 's', 'n', 'a', 'p', 's', 'h', 'o', 't',
	0, 0, 0, 0, 0, 0, 0,
}

// envelope is the on-disk snapshot layout. Payload is the
// zstd-compressed CBOR encoding of the aggregate; Checksum is the
// keyed BLAKE3 of Payload.
type envelope struct {
	Version  int      `cbor:"1,keyasint"`
	StoredAt int64    `cbor:"2,keyasint"`
	Checksum [32]byte `cbor:"3,keyasint"`
	Payload  []byte   `cbor:"4,keyasint"`
}

const envelopeVersion = 1

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("localcache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("localcache: zstd decoder initialization failed: " + err.Error())
	}
}

// Cache is a directory of snapshot files, one per calendar.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// New returns a cache rooted at dir, creating it if needed.
func New(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("localcache: creating %s: %w", dir, err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

func (c *Cache) path(calendarID string) string {
	return filepath.Join(c.dir, calendarID+".snap")
}

// Store writes a snapshot of the aggregate, replacing any previous
// one. The write goes through a temp file and rename so a crash never
// leaves a half-written snapshot behind.
func (c *Cache) Store(data *fiscal.CalendarData, now time.Time) error {
	plain, err := codec.Marshal(data)
	if err != nil {
		return fmt.Errorf("localcache: encoding snapshot: %w", err)
	}
	payload := zstdEncoder.EncodeAll(plain, nil)

	env := envelope{
		Version:  envelopeVersion,
		StoredAt: now.Unix(),
		Checksum: checksum(payload),
		Payload:  payload,
	}
	encoded, err := codec.Marshal(&env)
	if err != nil {
		return fmt.Errorf("localcache: encoding envelope: %w", err)
	}

	target := c.path(data.Calendar.ID)
	temp := target + ".tmp"
	if err := os.WriteFile(temp, encoded, 0o600); err != nil {
		return fmt.Errorf("localcache: writing snapshot: %w", err)
	}
	if err := os.Rename(temp, target); err != nil {
		os.Remove(temp)
		return fmt.Errorf("localcache: replacing snapshot: %w", err)
	}

	c.logger.Debug("snapshot stored",
		"calendar_id", data.Calendar.ID,
		"bytes", len(encoded),
	)
	return nil
}

// Load reads the snapshot for a calendar, returning the aggregate and
// the time it was stored. Anything wrong with the file — absent,
// undecodable, wrong version, checksum mismatch — is ErrNoSnapshot;
// the cache never surfaces partial data.
func (c *Cache) Load(calendarID string) (*fiscal.CalendarData, time.Time, error) {
	encoded, err := os.ReadFile(c.path(calendarID))
	if err != nil {
		return nil, time.Time{}, ErrNoSnapshot
	}

	var env envelope
	if err := codec.Unmarshal(encoded, &env); err != nil {
		c.logger.Warn("snapshot undecodable", "calendar_id", calendarID, "error", err)
		return nil, time.Time{}, ErrNoSnapshot
	}
	if env.Version != envelopeVersion {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if checksum(env.Payload) != env.Checksum {
		c.logger.Warn("snapshot checksum mismatch", "calendar_id", calendarID)
		return nil, time.Time{}, ErrNoSnapshot
	}

	plain, err := zstdDecoder.DecodeAll(env.Payload, nil)
	if err != nil {
		c.logger.Warn("snapshot decompression failed", "calendar_id", calendarID, "error", err)
		return nil, time.Time{}, ErrNoSnapshot
	}

	var data fiscal.CalendarData
	if err := codec.Unmarshal(plain, &data); err != nil {
		c.logger.Warn("snapshot payload undecodable", "calendar_id", calendarID, "error", err)
		return nil, time.Time{}, ErrNoSnapshot
	}

	return &data, time.Unix(env.StoredAt, 0).UTC(), nil
}

// Remove deletes a calendar's snapshot. Missing snapshots are fine.
func (c *Cache) Remove(calendarID string) error {
	err := os.Remove(c.path(calendarID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localcache: removing snapshot: %w", err)
	}
	return nil
}

func checksum(payload []byte) [32]byte {
	hasher, err := blake3.NewKeyed(snapshotDomainKey[:])
	if err != nil {
		panic("localcache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}
