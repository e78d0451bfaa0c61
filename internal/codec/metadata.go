package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	markerSOI  = 0xD8
	markerSOS  = 0xDA
	markerEOI  = 0xD9
	markerAPP1 = 0xE1

	tagOrientation = 0x0112
	typeShort      = 3
)

var (
	exifHeader   = []byte("Exif\x00\x00")
	pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
)

// ErrMetadataTooLarge is returned when an EXIF block does not fit one APP1 segment.
var ErrMetadataTooLarge = errors.New("exif block exceeds one APP1 segment")

// Metadata returns the raw EXIF block of an encoded image as a TIFF stream
// (byte-order mark first), or nil when the file carries none.
func Metadata(data []byte, format string) []byte {
	switch format {
	case FormatJPEG:
		for _, seg := range jpegSegments(data) {
			if seg.marker == markerAPP1 && bytes.HasPrefix(seg.data, exifHeader) {
				return append([]byte(nil), seg.data[len(exifHeader):]...)
			}
		}
	case FormatPNG:
		for _, c := range pngChunks(data) {
			if c.typ == "eXIf" {
				return append([]byte(nil), c.data...)
			}
		}
	}
	return nil
}

// Embed inserts a TIFF-structured EXIF block into an encoded image: an APP1
// segment after SOI for JPEG, an eXIf chunk before the first IDAT for PNG.
func Embed(data []byte, format string, tiff []byte) ([]byte, error) {
	switch format {
	case FormatJPEG:
		return insertJPEGExif(data, tiff)
	case FormatPNG:
		return insertPNGExif(data, tiff)
	}
	return nil, fmt.Errorf("embed exif in %s: %w", format, ErrUnsupportedFormat)
}

type jpegSegment struct {
	marker byte
	data   []byte
}

// jpegSegments lists the marker segments that precede the scan data.
func jpegSegments(data []byte) []jpegSegment {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil
	}
	var segs []jpegSegment
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			break
		}
		marker := data[i+1]
		if marker == 0xFF {
			i++
			continue
		}
		if marker == markerEOI || marker == markerSOS {
			break
		}
		n := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if n < 2 || i+2+n > len(data) {
			break
		}
		segs = append(segs, jpegSegment{marker: marker, data: data[i+4 : i+2+n]})
		i += 2 + n
	}
	return segs
}

// insertJPEGExif places an APP1 Exif segment right after SOI.
func insertJPEGExif(data, tiff []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("insert exif: not a JPEG stream")
	}
	payload := len(exifHeader) + len(tiff)
	if payload+2 > 0xFFFF {
		return nil, ErrMetadataTooLarge
	}

	out := make([]byte, 0, len(data)+payload+4)
	out = append(out, 0xFF, markerSOI, 0xFF, markerAPP1)
	out = binary.BigEndian.AppendUint16(out, uint16(payload+2))
	out = append(out, exifHeader...)
	out = append(out, tiff...)
	out = append(out, data[2:]...)
	return out, nil
}

type pngChunk struct {
	typ    string
	data   []byte
	offset int
}

func pngChunks(data []byte) []pngChunk {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil
	}
	var chunks []pngChunk
	i := len(pngSignature)
	for i+12 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[i : i+4]))
		end := i + 12 + n
		if n < 0 || end > len(data) {
			break
		}
		typ := string(data[i+4 : i+8])
		chunks = append(chunks, pngChunk{typ: typ, data: data[i+8 : i+8+n], offset: i})
		if typ == "IEND" {
			break
		}
		i = end
	}
	return chunks
}

// insertPNGExif places an eXIf chunk before the first IDAT chunk.
func insertPNGExif(data, tiff []byte) ([]byte, error) {
	at := -1
	for _, c := range pngChunks(data) {
		if c.typ == "IDAT" {
			at = c.offset
			break
		}
	}
	if at < 0 {
		return nil, fmt.Errorf("insert exif: no IDAT chunk in PNG stream")
	}

	chunk := make([]byte, 0, len(tiff)+12)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(tiff)))
	chunk = append(chunk, "eXIf"...)
	chunk = append(chunk, tiff...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:at]...)
	out = append(out, chunk...)
	out = append(out, data[at:]...)
	return out, nil
}

// ResetOrientation returns a copy of a TIFF-structured EXIF block whose IFD0
// Orientation entry, if any, is set to 1 (top-left).
func ResetOrientation(tiff []byte) []byte {
	out := append([]byte(nil), tiff...)
	if len(out) < 8 {
		return out
	}

	var order binary.ByteOrder
	switch string(out[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return out
	}

	ifd := int(order.Uint32(out[4:8]))
	if ifd < 8 || ifd+2 > len(out) {
		return out
	}
	count := int(order.Uint16(out[ifd : ifd+2]))
	for i := 0; i < count; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > len(out) {
			break
		}
		if order.Uint16(out[entry:entry+2]) != tagOrientation {
			continue
		}
		if order.Uint16(out[entry+2:entry+4]) == typeShort && order.Uint32(out[entry+4:entry+8]) == 1 {
			order.PutUint16(out[entry+8:entry+10], 1)
		}
		break
	}
	return out
}
