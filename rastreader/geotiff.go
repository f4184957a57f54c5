package rastreader

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// TIFF tags read by the decoder.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGDALNoData          = 42113
)

// TIFF field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeSByte    = 6
	typeUndef    = 7
	typeSShort   = 8
	typeSLong    = 9
	typeFloat    = 11
	typeDouble   = 12
	typeLong8    = 16
)

var fieldSizes = map[uint16]int{
	typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8,
	typeSByte: 1, typeUndef: 1, typeSShort: 2, typeSLong: 4,
	typeFloat: 4, typeDouble: 8, typeLong8: 8,
}

const (
	compressionNone         = 1
	compressionDeflate      = 8
	compressionAdobeDeflate = 32946

	predictorNone       = 1
	predictorHorizontal = 2
)

// geoTIFF decodes the first band of a classic (non Big) TIFF file lazily,
// one strip or tile at a time. Decoded blocks are kept for the life of the
// value, which is not safe for concurrent use.
type geoTIFF struct {
	r    io.ReaderAt
	size int64
	bo   binary.ByteOrder

	width, height   int
	samplesPerPixel int
	planar          int
	compression     int
	predictor       int
	dataType        string
	elemSize        int
	blockW, blockH  int
	blocksAcross    int
	offsets, counts []uint64
	pixelScale      []float64
	tiepoint        []float64
	transformation  []float64
	noData          float64
	hasNoData       bool
	blocks          map[int][]byte
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	raw   []byte
}

// openGeoTIFF reads the first IFD of the size bytes in r. Offsets and byte
// counts pointing past size are rejected before anything is allocated.
func openGeoTIFF(r io.ReaderAt, size int64) (*geoTIFF, error) {
	head := make([]byte, 8)
	if _, err := r.ReadAt(head, 0); err != nil {
		return nil, eris.Wrapf(ErrInvalidFormat, "reading TIFF header: %v", err)
	}

	var bo binary.ByteOrder
	switch string(head[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, eris.Wrapf(ErrInvalidFormat, "bad byte order mark %q", head[:2])
	}
	switch bo.Uint16(head[2:4]) {
	case 42:
	case 43:
		return nil, eris.Wrap(ErrInvalidFormat, "BigTIFF files are not supported")
	default:
		return nil, eris.Wrap(ErrInvalidFormat, "bad TIFF magic number")
	}

	entries, err := readIFD(r, size, bo, int64(bo.Uint32(head[4:8])))
	if err != nil {
		return nil, err
	}

	g := &geoTIFF{
		r:               r,
		size:            size,
		bo:              bo,
		samplesPerPixel: 1,
		planar:          1,
		compression:     compressionNone,
		predictor:       predictorNone,
		blocks:          map[int][]byte{},
	}
	if err := g.configure(entries); err != nil {
		return nil, err
	}
	return g, nil
}

func readIFD(r io.ReaderAt, size int64, bo binary.ByteOrder, off int64) (map[uint16]ifdEntry, error) {
	if off < 8 || off+2 > size {
		return nil, eris.Wrapf(ErrInvalidFormat, "bad IFD offset %d", off)
	}
	buf := make([]byte, 2)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, eris.Wrapf(ErrInvalidFormat, "reading IFD: %v", err)
	}
	n := int(bo.Uint16(buf))
	if off+2+12*int64(n) > size {
		return nil, eris.Wrapf(ErrInvalidFormat, "IFD at %d with %d entries runs past end of file", off, n)
	}

	buf = make([]byte, 12*n)
	if _, err := r.ReadAt(buf, off+2); err != nil {
		return nil, eris.Wrapf(ErrInvalidFormat, "reading IFD entries: %v", err)
	}

	entries := make(map[uint16]ifdEntry, n)
	for i := 0; i < n; i++ {
		e := buf[12*i : 12*i+12]
		entry := ifdEntry{tag: bo.Uint16(e[0:2]), typ: bo.Uint16(e[2:4]), count: bo.Uint32(e[4:8])}

		fieldSize, ok := fieldSizes[entry.typ]
		if !ok {
			// Unknown field types must be skipped.
			continue
		}
		total := int64(fieldSize) * int64(entry.count)
		if total <= 4 {
			entry.raw = append([]byte(nil), e[8:8+total]...)
		} else {
			valOff := int64(bo.Uint32(e[8:12]))
			if valOff+total > size {
				return nil, eris.Wrapf(ErrInvalidFormat, "tag %d: %d bytes at %d run past end of file", entry.tag, total, valOff)
			}
			entry.raw = make([]byte, total)
			if _, err := r.ReadAt(entry.raw, valOff); err != nil {
				return nil, eris.Wrapf(ErrInvalidFormat, "reading tag %d: %v", entry.tag, err)
			}
		}
		entries[entry.tag] = entry
	}
	return entries, nil
}

func (e ifdEntry) uints(bo binary.ByteOrder) []uint64 {
	out := make([]uint64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case typeByte, typeUndef:
			out = append(out, uint64(e.raw[i]))
		case typeShort:
			out = append(out, uint64(bo.Uint16(e.raw[2*i:])))
		case typeLong:
			out = append(out, uint64(bo.Uint32(e.raw[4*i:])))
		case typeLong8:
			out = append(out, bo.Uint64(e.raw[8*i:]))
		default:
			return nil
		}
	}
	return out
}

func (e ifdEntry) floats(bo binary.ByteOrder) []float64 {
	out := make([]float64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case typeDouble:
			out = append(out, decodeSample(e.raw[8*i:], "float64", bo))
		case typeFloat:
			out = append(out, decodeSample(e.raw[4*i:], "float32", bo))
		default:
			return nil
		}
	}
	return out
}

func (g *geoTIFF) configure(entries map[uint16]ifdEntry) error {
	first := func(tag uint16, def int) (int, error) {
		e, ok := entries[tag]
		if !ok {
			return def, nil
		}
		vs := e.uints(g.bo)
		if len(vs) == 0 {
			return 0, eris.Wrapf(ErrInvalidFormat, "tag %d has no integer value", tag)
		}
		return int(vs[0]), nil
	}

	var err error
	fields := []struct {
		tag uint16
		def int
		dst *int
	}{
		{tagImageWidth, 0, &g.width},
		{tagImageLength, 0, &g.height},
		{tagSamplesPerPixel, 1, &g.samplesPerPixel},
		{tagPlanarConfiguration, 1, &g.planar},
		{tagCompression, compressionNone, &g.compression},
		{tagPredictor, predictorNone, &g.predictor},
	}
	for _, f := range fields {
		if *f.dst, err = first(f.tag, f.def); err != nil {
			return err
		}
	}
	if g.width <= 0 || g.height <= 0 {
		return eris.Wrapf(ErrInvalidFormat, "bad image size %dx%d", g.width, g.height)
	}
	if g.samplesPerPixel < 1 {
		return eris.Wrapf(ErrInvalidFormat, "bad samples per pixel %d", g.samplesPerPixel)
	}

	bits, err := first(tagBitsPerSample, 1)
	if err != nil {
		return err
	}
	format, err := first(tagSampleFormat, 1)
	if err != nil {
		return err
	}
	if g.dataType, err = tiffDataType(bits, format); err != nil {
		return err
	}
	g.elemSize = sampleSizes[g.dataType]

	switch g.compression {
	case compressionNone, compressionDeflate, compressionAdobeDeflate:
	default:
		return eris.Wrapf(ErrInvalidFormat, "unsupported compression %d", g.compression)
	}
	switch g.predictor {
	case predictorNone:
	case predictorHorizontal:
		if format == 3 {
			return eris.Wrap(ErrInvalidFormat, "horizontal predictor on floating point samples")
		}
	default:
		return eris.Wrapf(ErrInvalidFormat, "unsupported predictor %d", g.predictor)
	}

	if _, tiled := entries[tagTileWidth]; tiled {
		if g.blockW, err = first(tagTileWidth, 0); err != nil {
			return err
		}
		if g.blockH, err = first(tagTileLength, 0); err != nil {
			return err
		}
		g.offsets = entries[tagTileOffsets].uints(g.bo)
		g.counts = entries[tagTileByteCounts].uints(g.bo)
	} else {
		g.blockW = g.width
		if g.blockH, err = first(tagRowsPerStrip, g.height); err != nil {
			return err
		}
		if g.blockH > g.height {
			g.blockH = g.height
		}
		g.offsets = entries[tagStripOffsets].uints(g.bo)
		g.counts = entries[tagStripByteCounts].uints(g.bo)
	}
	if g.blockW <= 0 || g.blockH <= 0 {
		return eris.Wrapf(ErrInvalidFormat, "bad block size %dx%d", g.blockW, g.blockH)
	}
	g.blocksAcross = (g.width + g.blockW - 1) / g.blockW
	blocksDown := (g.height + g.blockH - 1) / g.blockH
	need := g.blocksAcross * blocksDown
	if len(g.offsets) < need || len(g.counts) < need {
		return eris.Wrapf(ErrInvalidFormat, "expected %d blocks, found %d offsets and %d byte counts", need, len(g.offsets), len(g.counts))
	}
	for i := 0; i < need; i++ {
		if g.counts[i] > uint64(g.size) || g.offsets[i] > uint64(g.size)-g.counts[i] {
			return eris.Wrapf(ErrInvalidFormat, "block %d: %d bytes at %d run past end of file", i, g.counts[i], g.offsets[i])
		}
	}

	if e, ok := entries[tagModelPixelScale]; ok {
		g.pixelScale = e.floats(g.bo)
	}
	if e, ok := entries[tagModelTiepoint]; ok {
		g.tiepoint = e.floats(g.bo)
	}
	if e, ok := entries[tagModelTransformation]; ok {
		g.transformation = e.floats(g.bo)
	}
	if e, ok := entries[tagGDALNoData]; ok && e.typ == typeASCII {
		s := strings.TrimSpace(strings.TrimRight(string(e.raw), "\x00"))
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			g.noData, g.hasNoData = v, true
		}
	}
	return nil
}

func tiffDataType(bits, format int) (string, error) {
	var prefix string
	switch format {
	case 1:
		prefix = "uint"
	case 2:
		prefix = "int"
	case 3:
		prefix = "float"
	default:
		return "", eris.Wrapf(ErrInvalidFormat, "unsupported sample format %d", format)
	}
	dataType := prefix + strconv.Itoa(bits)
	if _, ok := sampleSizes[dataType]; !ok {
		return "", eris.Wrapf(ErrInvalidFormat, "unsupported %d bit %s samples", bits, prefix)
	}
	return dataType, nil
}

func (g *geoTIFF) Size() (int, int) { return g.width, g.height }

func (g *geoTIFF) GeoTransform() (GeoTransform, error) {
	if m := g.transformation; len(m) >= 16 {
		return GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}, nil
	}
	if len(g.tiepoint) >= 6 && len(g.pixelScale) >= 2 {
		i, j, x, y := g.tiepoint[0], g.tiepoint[1], g.tiepoint[3], g.tiepoint[4]
		sx, sy := g.pixelScale[0], g.pixelScale[1]
		return GeoTransform{x - i*sx, sx, 0, y + j*sy, 0, -sy}, nil
	}
	return GeoTransform{}, eris.Wrap(ErrMissingGeoreference, "TIFF has neither model transformation nor tiepoint and pixel scale")
}

func (g *geoTIFF) NoData() (float64, bool) { return g.noData, g.hasNoData }

// pixelStride is the distance in bytes between two band 1 samples.
func (g *geoTIFF) pixelStride() int {
	if g.planar == 2 {
		return g.elemSize
	}
	return g.elemSize * g.samplesPerPixel
}

func (g *geoTIFF) Sample(x, y int) (float64, error) {
	idx := (y/g.blockH)*g.blocksAcross + x/g.blockW
	block, err := g.block(idx)
	if err != nil {
		return 0, err
	}
	off := ((y%g.blockH)*g.blockW + x%g.blockW) * g.pixelStride()
	if off+g.elemSize > len(block) {
		return 0, eris.Wrapf(ErrInvalidFormat, "block %d too short for pixel (%d, %d)", idx, x, y)
	}
	return decodeSample(block[off:off+g.elemSize], g.dataType, g.bo), nil
}

func (g *geoTIFF) block(idx int) ([]byte, error) {
	if b, ok := g.blocks[idx]; ok {
		return b, nil
	}

	raw := make([]byte, g.counts[idx])
	if _, err := g.r.ReadAt(raw, int64(g.offsets[idx])); err != nil {
		return nil, eris.Wrapf(ErrIO, "reading block %d: %v", idx, err)
	}

	data := raw
	if g.compression != compressionNone {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidFormat, "block %d: %v", idx, err)
		}
		// A block never inflates past its nominal size.
		limit := int64(g.blockW) * int64(g.blockH) * int64(g.pixelStride())
		data, err = io.ReadAll(io.LimitReader(zr, limit))
		zr.Close()
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidFormat, "inflating block %d: %v", idx, err)
		}
	}

	if g.predictor == predictorHorizontal {
		g.undoPredictor(data)
	}

	g.blocks[idx] = data
	return data, nil
}

// undoPredictor reverses horizontal differencing in place, row by row.
func (g *geoTIFF) undoPredictor(data []byte) {
	spp := g.samplesPerPixel
	if g.planar == 2 {
		spp = 1
	}
	rowLen := g.blockW * spp * g.elemSize
	for row := 0; row+rowLen <= len(data); row += rowLen {
		line := data[row : row+rowLen]
		for i := spp; i < g.blockW*spp; i++ {
			cur, prev := line[i*g.elemSize:], line[(i-spp)*g.elemSize:]
			switch g.elemSize {
			case 1:
				cur[0] += prev[0]
			case 2:
				g.bo.PutUint16(cur, g.bo.Uint16(cur)+g.bo.Uint16(prev))
			case 4:
				g.bo.PutUint32(cur, g.bo.Uint32(cur)+g.bo.Uint32(prev))
			}
		}
	}
}
