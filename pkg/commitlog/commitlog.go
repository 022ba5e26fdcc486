// Package commitlog is a durable, append-only record of resolved commit
// values, used to accelerate the commit-value oracle across process
// restarts without re-walking commit roots for revisions it has already
// resolved once. Adapted from the teacher's segmented WAL
// (pkg/ingest/queue/durable.go): same file header, same 17-byte record
// header layout (offset + CRC32 + length + flags) and the same
// crc32.Castagnoli table, trimmed to a single append-only file holding
// fixed-shape commit records instead of opaque queue entries, since this
// log never needs multi-file rotation or batched writes — one commit
// record per resolved revision, written once and never replaced.
package commitlog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"docstore/pkg/commitvalue"
	"docstore/pkg/revision"
)

const (
	recordHeaderSize = 17         // 8 (offset) + 4 (crc) + 4 (length) + 1 (flags)
	fileHeaderSize   = 8          // 4 (magic) + 4 (reserved)
	fileMagic        = 0x434d4c47 // "CMLG"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Record is one durable commit-value resolution.
type Record struct {
	DocID string
	Rev   revision.Revision
	Value commitvalue.Value
}

// Log is the append-only commit log.
type Log struct {
	mu     sync.Mutex
	f      *os.File
	offset int64
}

// Open opens (creating if absent) the commit log file at path, writing
// the file header if the file is new.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("commitlog: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("commitlog: stat %q: %w", path, err)
	}
	l := &Log{f: f}
	if info.Size() == 0 {
		if err := l.writeFileHeader(); err != nil {
			f.Close()
			return nil, err
		}
		l.offset = fileHeaderSize
	} else {
		l.offset = info.Size()
	}
	return l, nil
}

func (l *Log) writeFileHeader() error {
	var hdr [fileHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], fileMagic)
	_, err := l.f.WriteAt(hdr[:], 0)
	return err
}

// Append durably records rec, returning the offset it was written at.
func (l *Log) Append(rec Record) (int64, error) {
	payload := encodeRecord(rec)

	l.mu.Lock()
	defer l.mu.Unlock()

	var header [recordHeaderSize]byte
	binary.BigEndian.PutUint64(header[0:8], uint64(l.offset))
	binary.BigEndian.PutUint32(header[8:12], crc32.Checksum(payload, crcTable))
	binary.BigEndian.PutUint32(header[12:16], uint32(len(payload)))
	header[16] = 0 // flags, reserved for future compression support

	if _, err := l.f.WriteAt(header[:], l.offset); err != nil {
		return 0, fmt.Errorf("commitlog: write header: %w", err)
	}
	if _, err := l.f.WriteAt(payload, l.offset+recordHeaderSize); err != nil {
		return 0, fmt.Errorf("commitlog: write payload: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return 0, fmt.Errorf("commitlog: sync: %w", err)
	}
	written := l.offset
	l.offset += recordHeaderSize + int64(len(payload))
	return written, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Replay streams every record in the log, in write order, to fn. Used at
// startup to rebuild the in-memory commit-value cache.
func (l *Log) Replay(fn func(Record) error) error {
	f, err := os.Open(l.f.Name())
	if err != nil {
		return fmt.Errorf("commitlog: replay open: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr [fileHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("commitlog: replay header: %w", err)
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != fileMagic {
		return fmt.Errorf("commitlog: bad file magic")
	}

	for {
		var header [recordHeaderSize]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			break // EOF or short read: end of valid log
		}
		length := binary.BigEndian.Uint32(header[12:16])
		wantCRC := binary.BigEndian.Uint32(header[8:12])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			break
		}
		if crc32.Checksum(payload, crcTable) != wantCRC {
			break // truncated or corrupt tail record: stop, do not propagate
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func encodeRecord(rec Record) []byte {
	docID := []byte(rec.DocID)
	rev := []byte(rec.Rev.String())
	val := []byte(rec.Value.String())

	buf := make([]byte, 0, 2+len(docID)+2+len(rev)+2+len(val))
	buf = appendLenPrefixed(buf, docID)
	buf = appendLenPrefixed(buf, rev)
	buf = appendLenPrefixed(buf, val)
	return buf
}

func appendLenPrefixed(buf []byte, s []byte) []byte {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	buf = append(buf, l[:]...)
	return append(buf, s...)
}

func decodeRecord(buf []byte) (Record, error) {
	docID, rest, err := readLenPrefixed(buf)
	if err != nil {
		return Record{}, err
	}
	revStr, rest, err := readLenPrefixed(rest)
	if err != nil {
		return Record{}, err
	}
	valStr, _, err := readLenPrefixed(rest)
	if err != nil {
		return Record{}, err
	}
	rev, err := revision.Parse(string(revStr))
	if err != nil {
		return Record{}, err
	}
	val, err := commitvalue.Parse(string(valStr))
	if err != nil {
		return Record{}, err
	}
	return Record{DocID: string(docID), Rev: rev, Value: val}, nil
}

func readLenPrefixed(buf []byte) (value, rest []byte, err error) {
	if len(buf) < 2 {
		return nil, nil, fmt.Errorf("commitlog: truncated record")
	}
	n := binary.BigEndian.Uint16(buf[0:2])
	if len(buf) < int(2+n) {
		return nil, nil, fmt.Errorf("commitlog: truncated record")
	}
	return buf[2 : 2+n], buf[2+n:], nil
}
