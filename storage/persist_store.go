package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/dexerrors"
	"github.com/colorfulnotion/dexinline/inline"
	"github.com/colorfulnotion/dexinline/log"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/crypto/blake2b"
)

// Key layout: resultPrefix || blake2b-256 method key.
var resultPrefix = []byte("r/")

const (
	statusRejected byte = 0
	statusInlined  byte = 1

	valueHeaderSize = 1 + 1 + 8
)

// Outcome is one cached analysis decision. Reason is the coded rejection,
// nil when the method was inlinable.
type Outcome struct {
	Inlinable bool
	Method    inline.InlineMethod
	Reason    error
}

// ResultCache wraps LevelDB to persist analysis outcomes across runs.
// Thread-safe: LevelDB handles its own synchronization.
type ResultCache struct {
	db     *leveldb.DB
	path   string
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResultCache opens or creates a LevelDB database at the given path.
// If path is empty, uses in-memory storage.
func NewResultCache(path string) (*ResultCache, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open result cache at %q: %w", path, err)
	}
	log.Debug(log.StorageMonitoring, "result cache opened", "path", path)
	return &ResultCache{db: db, path: path}, nil
}

// NewMemoryResultCache creates an in-memory ResultCache for testing.
func NewMemoryResultCache() (*ResultCache, error) {
	return NewResultCache("")
}

// MethodKey derives the cache key of one method. It covers the corpus
// fingerprint, since resolution depends on the whole class world, and the
// code item itself.
func MethodKey(fingerprint [32]byte, location string, methodIdx uint32, isStatic bool, code *dex.CodeItem) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write(fingerprint[:])
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(len(location)))
	h.Write(buf[:4])
	h.Write([]byte(location))
	binary.BigEndian.PutUint32(buf[:4], methodIdx)
	h.Write(buf[:4])
	if isStatic {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	if code != nil {
		binary.BigEndian.PutUint16(buf[0:2], code.RegistersSize)
		binary.BigEndian.PutUint16(buf[2:4], code.InsSize)
		binary.BigEndian.PutUint32(buf[4:8], uint32(len(code.Insns)))
		h.Write(buf[:])
		for _, unit := range code.Insns {
			binary.LittleEndian.PutUint16(buf[:2], unit)
			h.Write(buf[:2])
		}
	}
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func dbKey(key [32]byte) []byte {
	return append(append([]byte(nil), resultPrefix...), key[:]...)
}

// Get returns the cached outcome. Returns (Outcome{}, false, nil) if not found.
func (c *ResultCache) Get(key [32]byte) (Outcome, bool, error) {
	data, err := c.db.Get(dbKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		c.misses.Add(1)
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("Get %x: %w", key[:8], err)
	}
	out, err := decodeOutcome(data)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("Get %x: %w", key[:8], err)
	}
	c.hits.Add(1)
	return out, true, nil
}

func (c *ResultCache) Put(key [32]byte, out Outcome) error {
	value, err := encodeOutcome(out)
	if err != nil {
		return err
	}
	return c.db.Put(dbKey(key), value, nil)
}

// Len counts the cached outcomes.
func (c *ResultCache) Len() (int, error) {
	iter := c.db.NewIterator(util.BytesPrefix(resultPrefix), nil)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// Clear drops every cached outcome in one batch.
func (c *ResultCache) Clear() error {
	iter := c.db.NewIterator(util.BytesPrefix(resultPrefix), nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	log.Debug(log.StorageMonitoring, "result cache cleared", "entries", batch.Len())
	return c.db.Write(batch, nil)
}

// Stats returns the hit and miss counts of Get since the cache was opened.
func (c *ResultCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) Close() error {
	return c.db.Close()
}

// Value layout: status(1) | opcode(1) | packed payload(8, big endian) | reason code.
func encodeOutcome(out Outcome) ([]byte, error) {
	value := make([]byte, valueHeaderSize)
	if !out.Inlinable {
		code := dexerrors.GetErrorCode(out.Reason)
		if code == "" {
			return nil, fmt.Errorf("rejected outcome needs a coded reason, got %v", out.Reason)
		}
		value[0] = statusRejected
		return append(value, code...), nil
	}
	word, err := out.Method.Pack()
	if err != nil {
		return nil, fmt.Errorf("encode outcome: %w", err)
	}
	value[0] = statusInlined
	value[1] = byte(out.Method.Opcode)
	binary.BigEndian.PutUint64(value[2:10], word)
	return value, nil
}

func decodeOutcome(data []byte) (Outcome, error) {
	if len(data) < valueHeaderSize {
		return Outcome{}, fmt.Errorf("short outcome record (%d bytes)", len(data))
	}
	switch data[0] {
	case statusInlined:
		m, err := inline.UnpackInlineMethod(inline.InlineMethodOpcode(data[1]), binary.BigEndian.Uint64(data[2:10]))
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Inlinable: true, Method: m}, nil
	case statusRejected:
		code := string(data[valueHeaderSize:])
		reason, ok := dexerrors.Lookup(code)
		if !ok {
			return Outcome{}, fmt.Errorf("unknown rejection code %q", code)
		}
		return Outcome{Reason: reason}, nil
	default:
		return Outcome{}, fmt.Errorf("bad outcome status %d", data[0])
	}
}
