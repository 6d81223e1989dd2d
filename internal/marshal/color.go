package marshal

import (
	"math"
)

// Color4f is a non-premultiplied RGBA color with components in [0, 1].
type Color4f [4]float32

// Pack converts c to 0xAARRGGBB, clamping and rounding each channel.
func (c Color4f) Pack() uint32 {
	return channel(c[3])<<24 | channel(c[0])<<16 | channel(c[1])<<8 | channel(c[2])
}

func channel(v float32) uint32 {
	f := math.Round(math.Max(0, math.Min(float64(v)*255, 255)))
	return uint32(f)
}

// PackColors packs a slice of colors.
func PackColors(cs []Color4f) []uint32 {
	out := make([]uint32, len(cs))
	for i, c := range cs {
		out[i] = c.Pack()
	}
	return out
}

// Colors stages cs as consecutive RGBA float quadruples and returns the
// pointer and the color count.
func (s *Scratch) Colors(cs []Color4f) (uint32, int, error) {
	flat := make([]float32, 0, 4*len(cs))
	for _, c := range cs {
		flat = append(flat, c[:]...)
	}
	ptr, err := Copy(s, flat)
	return ptr, len(cs), err
}
