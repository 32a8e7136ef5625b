// Package sampler extracts a bounded set of representative frames from a
// motion clip for multi-frame analysis.
package sampler

import (
	"context"
	"image"
	"log/slog"
	"sort"
	"time"
)

// Strategy selects how representative frames are chosen.
type Strategy string

const (
	StrategyUniform  Strategy = "uniform"
	StrategyAdaptive Strategy = "adaptive"
	StrategyHybrid   Strategy = "hybrid"
)

// ParseStrategy maps a config string to a Strategy, defaulting to uniform.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyAdaptive:
		return StrategyAdaptive
	case StrategyHybrid:
		return StrategyHybrid
	default:
		return StrategyUniform
	}
}

// Frame is one selected clip frame with its position in the clip.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
}

// Clip abstracts a decoded motion clip. Implementations may decode
// lazily; Frame is called at most once per index per Sample run.
type Clip interface {
	FrameCount() int
	Frame(ctx context.Context, i int) (image.Image, time.Duration, error)
}

// Sampler picks frames from clips and discards unusable ones.
type Sampler struct {
	blurThreshold float64
}

func New(blurThreshold float64) *Sampler {
	return &Sampler{blurThreshold: blurThreshold}
}

// Sample returns up to target frames in clip order. A corrupt or empty
// clip yields an empty slice, never an error: the caller treats zero
// frames as a fallback trigger.
func (s *Sampler) Sample(ctx context.Context, clip Clip, target int, strategy Strategy) []Frame {
	if clip == nil || clip.FrameCount() == 0 || target <= 0 {
		return nil
	}

	var frames []Frame
	switch strategy {
	case StrategyAdaptive:
		frames = s.decode(ctx, clip, allIndices(clip.FrameCount()))
		frames = selectAdaptive(frames, target)
	case StrategyHybrid:
		// Over-sample uniformly, then let the adaptive filter cut down.
		candidates := uniformIndices(clip.FrameCount(), target*3)
		frames = s.decode(ctx, clip, candidates)
		frames = selectAdaptive(frames, target)
	default:
		frames = s.decode(ctx, clip, uniformIndices(clip.FrameCount(), target))
	}

	return frames
}

// decode fetches the given frame indices, dropping frames that fail to
// decode or fall under the blur threshold.
func (s *Sampler) decode(ctx context.Context, clip Clip, indices []int) []Frame {
	frames := make([]Frame, 0, len(indices))
	for _, i := range indices {
		if ctx.Err() != nil {
			break
		}
		img, ts, err := clip.Frame(ctx, i)
		if err != nil {
			slog.Warn("skip unreadable clip frame", "index", i, "error", err)
			continue
		}
		if img == nil {
			continue
		}
		if s.blurThreshold > 0 && sharpness(img) < s.blurThreshold {
			continue
		}
		frames = append(frames, Frame{Index: i, Timestamp: ts, Image: img})
	}
	return frames
}

// uniformIndices spreads count indices evenly across [0, total).
func uniformIndices(total, count int) []int {
	if count >= total {
		return allIndices(total)
	}
	indices := make([]int, count)
	if count == 1 {
		indices[0] = total / 2
		return indices
	}
	step := float64(total-1) / float64(count-1)
	for i := 0; i < count; i++ {
		indices[i] = int(float64(i) * step)
	}
	return indices
}

func allIndices(total int) []int {
	indices := make([]int, total)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// selectAdaptive scores candidates by motion energy against the previous
// kept frame, drops near-duplicates, and keeps the top-scoring frames in
// clip order.
func selectAdaptive(frames []Frame, target int) []Frame {
	if len(frames) <= 1 {
		return frames
	}

	type scored struct {
		frame  Frame
		energy float64
	}

	// The first frame anchors the diff chain and always scores highest.
	kept := []scored{{frame: frames[0], energy: 1}}
	prev := frames[0].Image

	const duplicateFloor = 0.008 // mean normalized pixel delta

	for _, f := range frames[1:] {
		e := motionEnergy(prev, f.Image)
		if e < duplicateFloor {
			continue // near-duplicate of the last kept frame
		}
		kept = append(kept, scored{frame: f, energy: e})
		prev = f.Image
	}

	if len(kept) > target {
		byEnergy := make([]scored, len(kept))
		copy(byEnergy, kept)
		sort.SliceStable(byEnergy, func(i, j int) bool { return byEnergy[i].energy > byEnergy[j].energy })
		byEnergy = byEnergy[:target]
		sort.SliceStable(byEnergy, func(i, j int) bool { return byEnergy[i].frame.Index < byEnergy[j].frame.Index })
		kept = byEnergy
	}

	out := make([]Frame, len(kept))
	for i, s := range kept {
		out[i] = s.frame
	}
	return out
}
