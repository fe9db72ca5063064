package narray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NumPy .npy v1.0 serialization. Shape, dtype and raw little-endian
// element data are preserved exactly so artifacts round-trip without
// re-encoding loss.

var npyMagic = []byte("\x93NUMPY")

// descr strings for the dtypes we persist. Always little-endian on the
// wire; single-byte types use the '|' (not applicable) byte-order mark
// like NumPy itself does.
var dtypeToDescr = map[Dtype]string{
	Uint8:   "|u1",
	Int16:   "<i2",
	Int32:   "<i4",
	Int64:   "<i8",
	Float32: "<f4",
	Float64: "<f8",
}

var descrToDtype = map[string]Dtype{
	"|u1": Uint8, "<u1": Uint8, "=u1": Uint8,
	"<i2": Int16, "=i2": Int16,
	"<i4": Int32, "=i4": Int32,
	"<i8": Int64, "=i8": Int64,
	"<f4": Float32, "=f4": Float32,
	"<f8": Float64, "=f8": Float64,
}

func itemSize(d Dtype) int {
	switch d {
	case Uint8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	default:
		return 8
	}
}

// EncodeNPY writes a in .npy v1.0 format.
func EncodeNPY(w io.Writer, a *Array) error {
	descr, ok := dtypeToDescr[a.Dtype]
	if !ok {
		return fmt.Errorf("cannot encode dtype %s", a.Dtype)
	}

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple(a.Shape))
	// Pad so the data section starts on a 64-byte boundary, newline last.
	padded := len(npyMagic) + 2 + 2 + len(header) + 1
	if rem := padded % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	if _, err := w.Write(hlen[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return writeElements(w, a)
}

// MarshalNPY is EncodeNPY into a byte slice.
func MarshalNPY(a *Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(128 + a.Len()*itemSize(a.Dtype))
	if err := EncodeNPY(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeNPY parses a .npy v1.0/v2.0 payload.
func DecodeNPY(b []byte) (*Array, error) {
	if len(b) < 10 || !bytes.Equal(b[:6], npyMagic) {
		return nil, fmt.Errorf("not a .npy payload")
	}
	major := b[6]
	var header string
	var data []byte
	switch major {
	case 1:
		hlen := int(binary.LittleEndian.Uint16(b[8:10]))
		if len(b) < 10+hlen {
			return nil, fmt.Errorf("truncated .npy header")
		}
		header = string(b[10 : 10+hlen])
		data = b[10+hlen:]
	case 2:
		if len(b) < 12 {
			return nil, fmt.Errorf("truncated .npy header")
		}
		hlen := int(binary.LittleEndian.Uint32(b[8:12]))
		if len(b) < 12+hlen {
			return nil, fmt.Errorf("truncated .npy header")
		}
		header = string(b[12 : 12+hlen])
		data = b[12+hlen:]
	default:
		return nil, fmt.Errorf("unsupported .npy version %d", major)
	}

	descr, fortran, shape, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	if fortran {
		return nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	dtype, ok := descrToDtype[descr]
	if !ok {
		return nil, fmt.Errorf("unsupported dtype descr %q", descr)
	}

	a, err := New(dtype, shape...)
	if err != nil {
		return nil, err
	}
	want := a.Len() * itemSize(dtype)
	if len(data) < want {
		return nil, fmt.Errorf("array data truncated: have %d bytes, want %d", len(data), want)
	}
	readElements(data[:want], a)
	return a, nil
}

func shapeTuple(shape []int) string {
	if len(shape) == 1 {
		return fmt.Sprintf("(%d,)", shape[0])
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// parseHeader extracts descr, fortran_order and shape from the python
// dict literal NumPy writes. Only the three standard keys are handled.
func parseHeader(h string) (descr string, fortran bool, shape []int, err error) {
	descr, err = quotedValue(h, "'descr':")
	if err != nil {
		return "", false, nil, err
	}
	fortran = strings.Contains(afterKey(h, "'fortran_order':"), "True")

	tup := afterKey(h, "'shape':")
	open := strings.Index(tup, "(")
	closing := strings.Index(tup, ")")
	if open < 0 || closing < open {
		return "", false, nil, fmt.Errorf("malformed shape in .npy header")
	}
	for _, tok := range strings.Split(tup[open+1:closing], ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		dim, convErr := strconv.Atoi(tok)
		if convErr != nil {
			return "", false, nil, fmt.Errorf("malformed shape dimension %q", tok)
		}
		shape = append(shape, dim)
	}
	if len(shape) == 0 {
		return "", false, nil, fmt.Errorf("zero-dimensional arrays are not supported")
	}
	return descr, fortran, shape, nil
}

func afterKey(h, key string) string {
	i := strings.Index(h, key)
	if i < 0 {
		return ""
	}
	return h[i+len(key):]
}

func quotedValue(h, key string) (string, error) {
	rest := afterKey(h, key)
	first := strings.Index(rest, "'")
	if first < 0 {
		return "", fmt.Errorf("missing %s in .npy header", key)
	}
	second := strings.Index(rest[first+1:], "'")
	if second < 0 {
		return "", fmt.Errorf("malformed %s in .npy header", key)
	}
	return rest[first+1 : first+1+second], nil
}

func writeElements(w io.Writer, a *Array) error {
	buf := make([]byte, a.Len()*itemSize(a.Dtype))
	switch a.Dtype {
	case Uint8:
		for i, v := range a.Data {
			buf[i] = byte(clampRound(v, 0, math.MaxUint8))
		}
	case Int16:
		for i, v := range a.Data {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(clampRound(v, math.MinInt16, math.MaxInt16))))
		}
	case Int32:
		for i, v := range a.Data {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(int32(clampRound(v, math.MinInt32, math.MaxInt32))))
		}
	case Int64:
		for i, v := range a.Data {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(int64(clampRound(v, math.MinInt64, math.MaxInt64))))
		}
	case Float32:
		for i, v := range a.Data {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
	default:
		for i, v := range a.Data {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	}
	_, err := w.Write(buf)
	return err
}

func readElements(data []byte, a *Array) {
	switch a.Dtype {
	case Uint8:
		for i := range a.Data {
			a.Data[i] = float64(data[i])
		}
	case Int16:
		for i := range a.Data {
			a.Data[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	case Int32:
		for i := range a.Data {
			a.Data[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case Int64:
		for i := range a.Data {
			a.Data[i] = float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
		}
	case Float32:
		for i := range a.Data {
			a.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	default:
		for i := range a.Data {
			a.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	}
}

func clampRound(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
