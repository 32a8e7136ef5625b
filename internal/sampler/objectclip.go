package sampler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sort"
	"time"
)

// ObjectStore is the slice of the blob store the clip reader needs.
// *storage.MediaStore satisfies it.
type ObjectStore interface {
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// ObjectClip reads a clip stored as an ordered set of JPEG frames under
// a common object prefix (how the ingestor uploads Protect clips).
type ObjectClip struct {
	store     ObjectStore
	keys      []string
	frameStep time.Duration
}

// OpenObjectClip lists the frame objects under prefix. frameStep is the
// capture interval between consecutive frames (clip duration / frames).
func OpenObjectClip(ctx context.Context, store ObjectStore, prefix string, frameStep time.Duration) (*ObjectClip, error) {
	keys, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list clip frames %s: %w", prefix, err)
	}
	// Frame keys are zero-padded sequence numbers; lexical order is frame order.
	sort.Strings(keys)
	return &ObjectClip{store: store, keys: keys, frameStep: frameStep}, nil
}

func (c *ObjectClip) FrameCount() int {
	return len(c.keys)
}

func (c *ObjectClip) Frame(ctx context.Context, i int) (image.Image, time.Duration, error) {
	if i < 0 || i >= len(c.keys) {
		return nil, 0, fmt.Errorf("frame index %d out of range", i)
	}
	data, err := c.store.GetObject(ctx, c.keys[i])
	if err != nil {
		return nil, 0, fmt.Errorf("get clip frame %s: %w", c.keys[i], err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode clip frame %s: %w", c.keys[i], err)
	}
	return img, time.Duration(i) * c.frameStep, nil
}
