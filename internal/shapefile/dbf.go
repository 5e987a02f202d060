package shapefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Field is one attribute column of a shapefile's DBF table.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// dbf layout constants. The header is 32 bytes, followed by 32-byte field
// descriptors terminated by 0x0D.
const (
	dbfHeaderSize     = 32
	dbfDescriptorSize = 32
)

// systemFields are geometry/system columns excluded from attribute previews:
// length/area accumulators maintained by desktop GIS tools, and the synthetic
// keys the import transformer adds.
var systemFields = map[string]bool{
	"shape_leng": true,
	"shape_le_1": true,
	"shape_area": true,
	"objectid":   true,
	"fid":        true,
	"gid":        true,
	"geom":       true,
	"geometry":   true,
}

// ReadFields decodes the field descriptors of a DBF attribute table.
//
// It reads only the fixed header and the descriptor array, never the record
// data, so it is cheap even for large tables. Geometry and system columns
// are excluded from the result.
func ReadFields(r io.Reader) ([]Field, error) {
	header := make([]byte, dbfHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read dbf header: %w", err)
	}

	headerSize := binary.LittleEndian.Uint16(header[8:10])
	recordSize := binary.LittleEndian.Uint16(header[10:12])
	if headerSize < dbfHeaderSize+1 {
		return nil, fmt.Errorf("dbf header size %d is too small", headerSize)
	}
	if recordSize == 0 {
		return nil, errors.New("dbf record size is zero")
	}

	// header = 32-byte prefix + n*32 descriptors + 1 terminator byte.
	numFields := (int(headerSize) - dbfHeaderSize - 1) / dbfDescriptorSize

	fields := make([]Field, 0, numFields)
	desc := make([]byte, dbfDescriptorSize)
	for i := 0; i < numFields; i++ {
		if _, err := io.ReadFull(r, desc); err != nil {
			return nil, fmt.Errorf("read field descriptor %d: %w", i, err)
		}
		if desc[0] == 0x0D {
			break // early terminator
		}

		name := strings.TrimRight(string(desc[0:11]), "\x00")
		name = strings.TrimSpace(name)
		if name == "" || systemFields[strings.ToLower(name)] {
			continue
		}

		fields = append(fields, Field{Name: name, Type: fieldType(desc[11])})
	}
	return fields, nil
}

// fieldType maps a DBF type byte to a coarse type label.
func fieldType(code byte) string {
	switch code {
	case 'C':
		return "string"
	case 'N', 'F', 'O', 'B':
		return "number"
	case 'D', 'T', '@':
		return "date"
	case 'L':
		return "boolean"
	case 'M':
		return "memo"
	default:
		return "string"
	}
}

// ReadFieldsFile decodes the attribute fields of the DBF at path.
//
// Used as a fast pre-publish attribute preview; any failure degrades to an
// empty list with a warning rather than aborting the upload.
func ReadFieldsFile(path string) []Field {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("attribute preview unavailable", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	fields, err := ReadFields(f)
	if err != nil {
		slog.Warn("attribute table decode failed", "path", path, "error", err)
		return nil
	}
	return fields
}
