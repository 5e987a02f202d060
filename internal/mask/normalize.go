package mask

import (
	"encoding/binary"
	"fmt"
	"os"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes a rune and strips combining marks, so é becomes e.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeDBF rewrites the record area of a dBASE attribute file so every
// byte is ASCII. Attribute values use a single-byte codepage, so each byte is
// folded independently and record offsets are preserved exactly. Bytes with no
// ASCII equivalent become underscores.
func normalizeDBF(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < 12 {
		return fmt.Errorf("attribute file too short: %d bytes", len(data))
	}

	headerSize := int(binary.LittleEndian.Uint16(data[8:10]))
	if headerSize <= 0 || headerSize > len(data) {
		return fmt.Errorf("attribute file header size %d out of range", headerSize)
	}

	changed := false
	for i := headerSize; i < len(data); i++ {
		if data[i] < 0x80 {
			continue
		}
		data[i] = foldByte(data[i])
		changed = true
	}
	if !changed {
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}

// foldByte maps a single high byte, read as Latin-1, to its closest ASCII
// letter, or underscore when decomposition leaves nothing printable.
func foldByte(b byte) byte {
	folded, _, err := transform.String(asciiFold, string(rune(b)))
	if err == nil && len(folded) == 1 && folded[0] < 0x80 && folded[0] >= 0x20 {
		return folded[0]
	}
	return '_'
}
