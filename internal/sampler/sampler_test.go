package sampler

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"
	"time"
)

// memClip serves synthetic frames from memory.
type memClip struct {
	frames []image.Image
	errAt  map[int]bool
}

func (c *memClip) FrameCount() int { return len(c.frames) }

func (c *memClip) Frame(_ context.Context, i int) (image.Image, time.Duration, error) {
	if c.errAt[i] {
		return nil, 0, errors.New("corrupt frame")
	}
	return c.frames[i], time.Duration(i) * 100 * time.Millisecond, nil
}

// flatFrame is a uniform gray image: zero sharpness, zero motion energy.
func flatFrame(v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// noisyFrame has per-pixel noise: high sharpness, and distinct seeds give
// high mutual motion energy.
func noisyFrame(seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// checkerFrame alternates tiles, phase-shifted by offset. Sharp edges,
// and different offsets differ strongly.
func checkerFrame(offset int) image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if ((x+offset)/8+y/8)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func noisyClip(n int) *memClip {
	c := &memClip{}
	for i := 0; i < n; i++ {
		c.frames = append(c.frames, noisyFrame(int64(i)))
	}
	return c
}

// TestUniformCountAndOrder verifies uniform sampling returns exactly the
// target count, in clip order, deterministically.
func TestUniformCountAndOrder(t *testing.T) {
	s := New(0) // blur filter off
	clip := noisyClip(30)

	frames := s.Sample(context.Background(), clip, 5, StrategyUniform)
	if len(frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Index <= frames[i-1].Index {
			t.Errorf("frames out of order: %d then %d", frames[i-1].Index, frames[i].Index)
		}
	}
	if frames[0].Index != 0 || frames[len(frames)-1].Index != 29 {
		t.Errorf("uniform sampling should span the clip, got first=%d last=%d",
			frames[0].Index, frames[len(frames)-1].Index)
	}

	again := s.Sample(context.Background(), clip, 5, StrategyUniform)
	for i := range frames {
		if frames[i].Index != again[i].Index {
			t.Fatal("uniform sampling must be deterministic")
		}
	}
}

// TestUniformSmallClip verifies a clip shorter than the target returns
// every frame.
func TestUniformSmallClip(t *testing.T) {
	s := New(0)
	frames := s.Sample(context.Background(), noisyClip(3), 10, StrategyUniform)
	if len(frames) != 3 {
		t.Fatalf("expected all 3 frames, got %d", len(frames))
	}
}

// TestAdaptiveSkipsDuplicates verifies near-identical consecutive frames
// collapse to fewer, higher-signal frames.
func TestAdaptiveSkipsDuplicates(t *testing.T) {
	s := New(0)
	// Three scenes, each repeated 5 times.
	c := &memClip{}
	for scene := 0; scene < 3; scene++ {
		f := checkerFrame(scene * 4)
		for rep := 0; rep < 5; rep++ {
			c.frames = append(c.frames, f)
		}
	}

	frames := s.Sample(context.Background(), c, 10, StrategyAdaptive)
	if len(frames) != 3 {
		t.Fatalf("expected 3 distinct-scene frames, got %d", len(frames))
	}
	wantIdx := []int{0, 5, 10}
	for i, f := range frames {
		if f.Index != wantIdx[i] {
			t.Errorf("frame %d: want index %d, got %d", i, wantIdx[i], f.Index)
		}
	}
}

// TestAdaptiveCapsAtTarget verifies busy clips are cut to the target
// count with clip order preserved.
func TestAdaptiveCapsAtTarget(t *testing.T) {
	s := New(0)
	frames := s.Sample(context.Background(), noisyClip(20), 4, StrategyAdaptive)
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Index <= frames[i-1].Index {
			t.Errorf("adaptive selection must preserve clip order")
		}
	}
}

// TestHybridRespectsTarget verifies the hybrid strategy never exceeds the
// target even on busy clips.
func TestHybridRespectsTarget(t *testing.T) {
	s := New(0)
	frames := s.Sample(context.Background(), noisyClip(60), 5, StrategyHybrid)
	if len(frames) == 0 || len(frames) > 5 {
		t.Fatalf("hybrid should return 1..5 frames, got %d", len(frames))
	}
}

// TestBlurFilterDiscards verifies flat (blurry) frames are dropped before
// reaching callers.
func TestBlurFilterDiscards(t *testing.T) {
	s := New(25.0)
	c := &memClip{frames: []image.Image{
		flatFrame(128),
		noisyFrame(1),
		flatFrame(40),
		noisyFrame(2),
	}}

	frames := s.Sample(context.Background(), c, 4, StrategyUniform)
	if len(frames) != 2 {
		t.Fatalf("expected 2 sharp frames, got %d", len(frames))
	}
	if frames[0].Index != 1 || frames[1].Index != 3 {
		t.Errorf("wrong frames survived blur filter: %d, %d", frames[0].Index, frames[1].Index)
	}
}

// TestEmptyAndCorruptClips verifies extraction failure surfaces as an
// explicit empty result rather than an error or partial garbage.
func TestEmptyAndCorruptClips(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if got := s.Sample(ctx, &memClip{}, 5, StrategyUniform); len(got) != 0 {
		t.Errorf("empty clip should yield no frames, got %d", len(got))
	}
	if got := s.Sample(ctx, nil, 5, StrategyUniform); len(got) != 0 {
		t.Errorf("nil clip should yield no frames, got %d", len(got))
	}

	corrupt := &memClip{
		frames: make([]image.Image, 4),
		errAt:  map[int]bool{0: true, 1: true, 2: true, 3: true},
	}
	if got := s.Sample(ctx, corrupt, 4, StrategyUniform); len(got) != 0 {
		t.Errorf("fully corrupt clip should yield no frames, got %d", len(got))
	}
}

// TestParseStrategy verifies unknown strategies fall back to uniform.
func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"uniform":  StrategyUniform,
		"adaptive": StrategyAdaptive,
		"hybrid":   StrategyHybrid,
		"":         StrategyUniform,
		"bogus":    StrategyUniform,
	}
	for in, want := range cases {
		if got := ParseStrategy(in); got != want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", in, got, want)
		}
	}
}
