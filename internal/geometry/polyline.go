package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/disaster-console/internal/domain"
)

// Wire constants of the flexible polyline encoding. Every character carries
// a 5-bit group plus a continuation bit, offset into printable ASCII.
const (
	charOffset      = 63
	groupMask       = 0x1f
	continuationBit = 0x20
	maxChar         = charOffset + (groupMask | continuationBit)

	// coordinateFactor is applied to latitude and longitude regardless of
	// the header's precision field. It matches the data service's encoder;
	// confirm against the encoder before deriving it from Header.Precision.
	coordinateFactor = 1e5
)

var (
	// ErrTruncated is returned when the input ends inside a value or inside a point.
	ErrTruncated = errors.New("polyline truncated")
	// ErrInvalidChar is returned for characters outside the encoding alphabet.
	ErrInvalidChar = errors.New("polyline invalid character")
	// ErrOverflow is returned when a value does not fit in 64 bits.
	ErrOverflow = errors.New("polyline value overflow")
)

// Header is the self-describing prefix of an encoded polyline.
type Header struct {
	Precision         int
	ThirdDim          int
	ThirdDimPrecision int
}

// HasThirdDim reports whether every point carries a third value (elevation).
func (h Header) HasThirdDim() bool { return h.ThirdDim != 0 }

func (h Header) encode() uint64 {
	return uint64(h.Precision&15) | uint64(h.ThirdDim&7)<<4 | uint64(h.ThirdDimPrecision&15)<<7
}

func parseHeader(v uint64) Header {
	return Header{
		Precision:         int(v & 15),
		ThirdDim:          int((v >> 4) & 7),
		ThirdDimPrecision: int((v >> 7) & 15),
	}
}

// decoder walks an encoded polyline one variable-length value at a time.
type decoder struct {
	s   string
	pos int
}

func (d *decoder) done() bool { return d.pos >= len(d.s) }

func (d *decoder) unsigned() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if d.done() {
			return 0, fmt.Errorf("%w at offset %d", ErrTruncated, d.pos)
		}
		c := d.s[d.pos]
		if c < charOffset || c > maxChar {
			return 0, fmt.Errorf("%w %q at offset %d", ErrInvalidChar, c, d.pos)
		}
		d.pos++

		b := uint64(c - charOffset)
		if shift >= 64 {
			return 0, fmt.Errorf("%w at offset %d", ErrOverflow, d.pos-1)
		}
		result |= (b & groupMask) << shift
		shift += 5
		if b&continuationBit == 0 {
			return result, nil
		}
	}
}

func (d *decoder) signed() (int64, error) {
	u, err := d.unsigned()
	if err != nil {
		return 0, err
	}
	if u&1 != 0 {
		return ^int64(u >> 1), nil
	}
	return int64(u >> 1), nil
}

// DecodeHeader returns the header of an encoded polyline.
func DecodeHeader(encoded string) (Header, error) {
	d := decoder{s: encoded}
	v, err := d.unsigned()
	if err != nil {
		return Header{}, fmt.Errorf("decode header: %w", err)
	}
	return parseHeader(v), nil
}

// Decode converts an encoded polyline into its ordered points. Elevation
// values are consumed but not returned. Any malformed input fails the
// whole decode; no partial sequence is returned.
func Decode(encoded string) ([]domain.Coordinates, error) {
	d := decoder{s: strings.TrimSpace(encoded)}
	hv, err := d.unsigned()
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	header := parseHeader(hv)

	points := []domain.Coordinates{}
	var lat, lng int64
	for !d.done() {
		dlat, err := d.signed()
		if err != nil {
			return nil, fmt.Errorf("decode point %d latitude: %w", len(points), err)
		}
		dlng, err := d.signed()
		if err != nil {
			return nil, fmt.Errorf("decode point %d longitude: %w", len(points), err)
		}
		if header.HasThirdDim() {
			if _, err := d.signed(); err != nil {
				return nil, fmt.Errorf("decode point %d third dimension: %w", len(points), err)
			}
		}
		lat += dlat
		lng += dlng
		points = append(points, domain.Coordinates{
			Lat: float64(lat) / coordinateFactor,
			Lon: float64(lng) / coordinateFactor,
		})
	}
	return points, nil
}

// Encode is the inverse of Decode for two-dimensional points.
func Encode(points []domain.Coordinates) string {
	var b strings.Builder
	writeUnsigned(&b, Header{Precision: 5}.encode())

	var prevLat, prevLng int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * coordinateFactor))
		lng := int64(math.Round(p.Lon * coordinateFactor))
		writeSigned(&b, lat-prevLat)
		writeSigned(&b, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return b.String()
}

func writeUnsigned(b *strings.Builder, v uint64) {
	for v >= continuationBit {
		b.WriteByte(byte(continuationBit|(v&groupMask)) + charOffset)
		v >>= 5
	}
	b.WriteByte(byte(v) + charOffset)
}

func writeSigned(b *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	writeUnsigned(b, u)
}
