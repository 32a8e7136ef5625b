package sampler

import "image"

// downsampleStride caps the pixel work per frame so scoring stays cheap
// on large snapshots.
const downsampleStride = 4

// luma returns the 8-bit luminance at (x, y).
func luma(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

// motionEnergy scores how different two frames are: mean absolute
// luminance delta over a strided grid, normalized to [0, 1]. Frames of
// different sizes compare over the overlapping region.
func motionEnergy(a, b image.Image) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	w := min(ab.Dx(), bb.Dx())
	h := min(ab.Dy(), bb.Dy())
	if w == 0 || h == 0 {
		return 0
	}

	var sum float64
	var n int
	for y := 0; y < h; y += downsampleStride {
		for x := 0; x < w; x += downsampleStride {
			la := luma(a, ab.Min.X+x, ab.Min.Y+y)
			lb := luma(b, bb.Min.X+x, bb.Min.Y+y)
			d := la - lb
			if d < 0 {
				d = -d
			}
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / 255.0
}

// sharpness estimates focus quality as the variance of a 4-neighbour
// Laplacian over a strided grid. Blurry frames score low.
func sharpness(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	var n int
	for y := 1; y < h-1; y += downsampleStride {
		for x := 1; x < w-1; x += downsampleStride {
			c := luma(img, b.Min.X+x, b.Min.Y+y)
			lap := 4*c -
				luma(img, b.Min.X+x-1, b.Min.Y+y) -
				luma(img, b.Min.X+x+1, b.Min.Y+y) -
				luma(img, b.Min.X+x, b.Min.Y+y-1) -
				luma(img, b.Min.X+x, b.Min.Y+y+1)
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
