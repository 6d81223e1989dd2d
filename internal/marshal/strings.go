package marshal

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding selects the guest string representation.
type Encoding uint8

const (
	UTF8 Encoding = iota
	UTF16
	UTF32
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16:
		return "utf-16le"
	case UTF32:
		return "utf-32le"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// UnitSize is the code unit width in bytes, which is also the terminator width.
func (e Encoding) UnitSize() int {
	switch e {
	case UTF16:
		return 2
	case UTF32:
		return 4
	default:
		return 1
	}
}

func (e Encoding) codec() (encoding.Encoding, error) {
	switch e {
	case UTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case UTF32:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	case UTF8:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported string encoding %s", e)
	}
}

// Encode converts s to enc and appends a terminator of one code unit.
func Encode(enc Encoding, s string) ([]byte, error) {
	b, err := encodeRaw(enc, s)
	if err != nil {
		return nil, err
	}
	return append(b, make([]byte, enc.UnitSize())...), nil
}

func encodeRaw(enc Encoding, s string) ([]byte, error) {
	c, err := enc.codec()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return []byte(s), nil
	}
	// Astral code points become surrogate pairs in UTF-16.
	return c.NewEncoder().Bytes([]byte(s))
}

// Decode converts guest bytes back to a Go string, stopping at the first
// code-unit-aligned terminator. A zero byte inside a wider unit is data.
func Decode(enc Encoding, b []byte) (string, error) {
	w := enc.UnitSize()
	end := len(b) - len(b)%w
	for i := 0; i+w <= len(b); i += w {
		if isZero(b[i : i+w]) {
			end = i
			break
		}
	}
	return decodeRaw(enc, b[:end])
}

func decodeRaw(enc Encoding, b []byte) (string, error) {
	c, err := enc.codec()
	if err != nil {
		return "", err
	}
	if c == nil {
		return string(b), nil
	}
	out, err := c.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
