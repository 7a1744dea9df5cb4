package blockid

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// String decoding per spec.md §4.3: on-disk label/name fields arrive as
// fixed-width byte arrays in one of a handful of encodings, trimmed of
// trailing NUL padding, decoded either strictly (reject invalid sequences,
// the detector treats the field as absent) or losslessly-best-effort
// (replace invalid sequences, used only where spec.md explicitly allows a
// degraded label rather than rejecting the whole detector).
//
// golang.org/x/text/encoding/unicode + transform do the UTF-16 decoding;
// this is the module soypat-fat's go.mod declares but never imports
// anywhere in that repo — the dependency exists in the pack, unused, and
// is wired to an actual caller here instead.

// trimTrailingNUL drops trailing zero bytes/runes a fixed-width on-disk
// field pads with.
func trimTrailingNUL(b []byte) []byte {
	return bytes.TrimRight(b, "\x00")
}

// DecodeASCIIStrict decodes a fixed-width field as 7-bit ASCII, rejecting
// any byte with the high bit set. Used for the ext2/3/4, VFAT and swap
// labels and the LUKS/LVM2 UUID text fields.
func DecodeASCIIStrict(raw []byte) (string, error) {
	b := trimTrailingNUL(raw)
	for _, c := range b {
		if c >= 0x80 {
			return "", &ErrDecode{Detector: "ascii", Reason: "byte >= 0x80 in strict ASCII field"}
		}
	}
	return string(b), nil
}

// DecodeUTF8Strict decodes a fixed-width field as UTF-8, rejecting
// malformed sequences outright.
func DecodeUTF8Strict(raw []byte) (string, error) {
	b := trimTrailingNUL(raw)
	if !utf8.Valid(b) {
		return "", &ErrDecode{Detector: "utf8", Reason: "invalid UTF-8 sequence"}
	}
	return string(b), nil
}

// DecodeUTF8Lossy decodes a fixed-width field as UTF-8, substituting the
// Unicode replacement character for malformed sequences instead of
// rejecting the field (XFS and ZoneFS labels, where spec.md tolerates a
// degraded but non-empty label).
func DecodeUTF8Lossy(raw []byte) string {
	return string(bytes.ToValidUTF8(trimTrailingNUL(raw), "�"))
}

// DecodeUTF16Strict decodes a fixed-width field of UTF-16 code units
// (little- or big-endian per little) into a string, rejecting unpaired
// surrogates. Used for the exFAT volume label.
func DecodeUTF16Strict(raw []byte, little bool) (string, error) {
	raw = trimEvenTrailingNUL(raw)
	if len(raw)%2 != 0 {
		return "", &ErrDecode{Detector: "utf16", Reason: "odd byte length"}
	}
	unit := func(i int) uint16 {
		if little {
			return uint16(raw[i]) | uint16(raw[i+1])<<8
		}
		return uint16(raw[i])<<8 | uint16(raw[i+1])
	}
	for i := 0; i < len(raw); i += 2 {
		u := unit(i)
		if u&0xFC00 == 0xD800 && i+4 <= len(raw) && unit(i+2)&0xFC00 == 0xDC00 {
			i += 2 // well-formed surrogate pair
		} else if u&0xF800 == 0xD800 {
			return "", &ErrDecode{Detector: "utf16", Reason: "unpaired surrogate"}
		}
	}
	out, _, err := transform.Bytes(utf16Codec(little).NewDecoder(), raw)
	if err != nil {
		return "", &ErrDecode{Detector: "utf16", Reason: err.Error()}
	}
	return string(out), nil
}

// DecodeUTF16Lossy decodes a fixed-width UTF-16 field, substituting the
// replacement character for invalid sequences rather than rejecting.
func DecodeUTF16Lossy(raw []byte, little bool) string {
	raw = trimEvenTrailingNUL(raw)
	dec := unicode.UTF16(utf16Order(little), unicode.IgnoreBOM).NewDecoder()
	out, _, err := transform.Bytes(encoding.ReplaceUnsupported(dec), raw)
	if err != nil {
		return ""
	}
	return string(out)
}

func utf16Order(little bool) unicode.Endianness {
	if little {
		return unicode.LittleEndian
	}
	return unicode.BigEndian
}

func utf16Codec(little bool) encoding.Encoding {
	return unicode.UTF16(utf16Order(little), unicode.IgnoreBOM)
}

// trimEvenTrailingNUL trims trailing UTF-16 NUL code units (two zero
// bytes at a time) from a raw field, preserving an odd leftover byte only
// if the field's length itself is odd (which would already be malformed
// for UTF-16 and is left for the decoder to reject).
func trimEvenTrailingNUL(raw []byte) []byte {
	end := len(raw)
	for end >= 2 && raw[end-2] == 0 && raw[end-1] == 0 {
		end -= 2
	}
	return raw[:end]
}
