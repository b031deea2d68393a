// Binary encoding for snapshot row blobs.
//
// A register snapshot is a few thousand rows of short strings. Length-
// prefixed records keep the dominant blob compact and cheap to decode
// compared to JSON, and field keys are sorted so the same rows always
// encode to the same bytes.
//
// Row blob format (little-endian):
//
//	rowCount: uint32
//	per row:
//	  orgLen:     uint16
//	  org:        [orgLen]byte
//	  fieldCount: uint16
//	  per field:
//	    keyLen: uint16 + key: [keyLen]byte
//	    valLen: uint16 + val: [valLen]byte
package bbolt

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/kakiii/kmatch/internal/ports"
)

// maxStrLen is the largest string a uint16 length prefix can carry.
const maxStrLen = 65535

// encodeRows encodes rows to compact binary format. A single buffer is
// pre-allocated to avoid repeated growth.
func encodeRows(rows []ports.Row) ([]byte, error) {
	// Pre-calculate total size for single allocation.
	// Header: 4 bytes (rowCount)
	// Per row: 2 (orgLen) + len(org) + 2 (fieldCount) + per field 4 + len(k) + len(v)
	totalSize := 4
	for _, row := range rows {
		totalSize += 2 + len(row.Organisation) + 2
		for k, v := range row.Fields {
			totalSize += 4 + len(k) + len(v)
		}
	}

	buf := make([]byte, totalSize)
	offset := 0

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(rows)))
	offset += 4

	for _, row := range rows {
		if len(row.Organisation) > maxStrLen {
			return nil, fmt.Errorf("organisation name too long: %d bytes", len(row.Organisation))
		}
		binary.LittleEndian.PutUint16(buf[offset:], uint16(len(row.Organisation)))
		offset += 2
		copy(buf[offset:], row.Organisation)
		offset += len(row.Organisation)

		// Sort field keys for deterministic output.
		keys := make([]string, 0, len(row.Fields))
		for k := range row.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > maxStrLen {
			return nil, fmt.Errorf("row %q has too many fields: %d", row.Organisation, len(keys))
		}

		binary.LittleEndian.PutUint16(buf[offset:], uint16(len(keys)))
		offset += 2
		for _, k := range keys {
			v := row.Fields[k]
			if len(k) > maxStrLen || len(v) > maxStrLen {
				return nil, fmt.Errorf("field %q of %q too long", k, row.Organisation)
			}
			binary.LittleEndian.PutUint16(buf[offset:], uint16(len(k)))
			offset += 2
			copy(buf[offset:], k)
			offset += len(k)
			binary.LittleEndian.PutUint16(buf[offset:], uint16(len(v)))
			offset += 2
			copy(buf[offset:], v)
			offset += len(v)
		}
	}

	return buf, nil
}

// decodeRows decodes a binary row blob. Every read is bounds-checked to
// avoid panics on corrupt data.
func decodeRows(data []byte) ([]ports.Row, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("row blob too short: %d bytes", len(data))
	}

	offset := 0
	rowCount := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	// Each row needs at least its two length prefixes; a count beyond
	// that is corrupt and must not drive the allocation below.
	if int64(rowCount)*4 > int64(len(data)-4) {
		return nil, fmt.Errorf("row count %d exceeds blob size %d", rowCount, len(data))
	}

	rows := make([]ports.Row, 0, rowCount)
	for i := uint32(0); i < rowCount; i++ {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("truncated at row %d organisation length (offset %d)", i, offset)
		}
		orgLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2

		if offset+orgLen > len(data) {
			return nil, fmt.Errorf("truncated at row %d organisation (offset %d, need %d)", i, offset, orgLen)
		}
		org := string(data[offset : offset+orgLen])
		offset += orgLen

		if offset+2 > len(data) {
			return nil, fmt.Errorf("truncated at row %d field count (offset %d)", i, offset)
		}
		fieldCount := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2

		row := ports.Row{Organisation: org}
		if fieldCount > 0 {
			row.Fields = make(map[string]string, fieldCount)
		}
		for j := 0; j < fieldCount; j++ {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("truncated at row %d field %d key length (offset %d)", i, j, offset)
			}
			keyLen := int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
			if offset+keyLen > len(data) {
				return nil, fmt.Errorf("truncated at row %d field %d key (offset %d, need %d)", i, j, offset, keyLen)
			}
			key := string(data[offset : offset+keyLen])
			offset += keyLen

			if offset+2 > len(data) {
				return nil, fmt.Errorf("truncated at row %d field %d value length (offset %d)", i, j, offset)
			}
			valLen := int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
			if offset+valLen > len(data) {
				return nil, fmt.Errorf("truncated at row %d field %d value (offset %d, need %d)", i, j, offset, valLen)
			}
			row.Fields[key] = string(data[offset : offset+valLen])
			offset += valLen
		}

		rows = append(rows, row)
	}

	return rows, nil
}
