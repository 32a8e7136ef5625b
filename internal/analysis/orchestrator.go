package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/sampler"
)

const (
	// clipObjectName is the native clip object under a trigger's clip prefix.
	clipObjectName = "clip.mp4"
	// framesPrefix holds the pre-extracted JPEG frames under the clip prefix.
	framesPrefix = "frames/"
	// clipFrameStep is the capture interval the ingestor extracts frames at.
	clipFrameStep = 500 * time.Millisecond

	// degradedDescription is persisted when every mode and provider failed.
	degradedDescription = "Motion detected (description unavailable)"
)

// Fallback causes recorded in the reason chain.
const (
	causeNoClipSource       = "no_clip_source"
	causeClipDownloadFailed = "clip_download_failed"
	causeTimeout            = "timeout"
	causeAllProvidersFailed = "all_providers_failed"
	causeExtractionFailed   = "frame_extraction_failed"
	causeAIFailed           = "ai_failed"
)

// ObjectStore is the blob-store slice the orchestrator needs for clip
// download and snapshot retrieval. *storage.MediaStore satisfies it.
type ObjectStore interface {
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Options tunes a single orchestrator instance.
type Options struct {
	VideoTimeout time.Duration
	TargetFrames int
	Strategy     sampler.Strategy
}

// Orchestrator runs the video_native -> multi_frame -> single_frame
// fallback state machine over an ordered provider chain.
type Orchestrator struct {
	providers []Provider
	sampler   *sampler.Sampler
	store     ObjectStore
	opts      Options
}

func NewOrchestrator(providers []Provider, smp *sampler.Sampler, store ObjectStore, opts Options) *Orchestrator {
	if opts.VideoTimeout == 0 {
		opts.VideoTimeout = 30 * time.Second
	}
	if opts.TargetFrames == 0 {
		opts.TargetFrames = 5
	}
	return &Orchestrator{providers: providers, sampler: smp, store: store, opts: opts}
}

// Analyze produces exactly one AnalysisResult for the trigger. It never
// returns an error: when the terminal single_frame stage also fails the
// result carries a degraded placeholder description and the full
// fallback chain for operator diagnosis.
func (o *Orchestrator) Analyze(ctx context.Context, cam *models.Camera, trigger models.MotionTrigger) models.AnalysisResult {
	var chain models.FallbackChain
	mode := cam.AnalysisMode
	if mode == "" {
		mode = models.ModeSingleFrame
	}

	if mode == models.ModeVideoNative {
		if res, ok := o.tryVideoNative(ctx, cam, trigger, &chain); ok {
			res.Fallbacks = chain
			return res
		}
		mode = models.ModeMultiFrame
	}

	if mode == models.ModeMultiFrame {
		if res, ok := o.tryMultiFrame(ctx, cam, trigger, &chain); ok {
			res.Fallbacks = chain
			return res
		}
	}

	res := o.trySingleFrame(ctx, trigger, &chain)
	res.Fallbacks = chain
	return res
}

func fallback(chain *models.FallbackChain, stage models.AnalysisMode, cause string) {
	*chain = append(*chain, models.FallbackReason{Stage: stage, Cause: cause})
	observability.AnalysisFallbacks.WithLabelValues(string(stage), cause).Inc()
}

// tryVideoNative submits the clip to each video-capable provider in
// order. Only attempted when the camera type can serve clips and the
// trigger actually carries one.
func (o *Orchestrator) tryVideoNative(ctx context.Context, cam *models.Camera, trigger models.MotionTrigger, chain *models.FallbackChain) (models.AnalysisResult, bool) {
	if !cam.Type.SupportsClips() || !trigger.HasClipSource() {
		fallback(chain, models.ModeVideoNative, causeNoClipSource)
		return models.AnalysisResult{}, false
	}

	start := time.Now()
	video, err := o.store.GetObject(ctx, trigger.ClipKey+"/"+clipObjectName)
	if err != nil {
		slog.Warn("clip download failed", "camera_id", cam.ID, "clip", trigger.ClipKey, "error", err)
		fallback(chain, models.ModeVideoNative, causeClipDownloadFailed)
		return models.AnalysisResult{}, false
	}

	for _, p := range o.providers {
		if !p.Supports(models.ModeVideoNative) {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, o.opts.VideoTimeout)
		desc, err := p.DescribeVideo(callCtx, video, "video/mp4")
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				fallback(chain, models.ModeVideoNative, causeTimeout)
			} else {
				slog.Warn("video provider failed", "provider", p.Name(), "error", err)
			}
			continue
		}

		observability.AnalysisDuration.WithLabelValues(string(models.ModeVideoNative)).Observe(time.Since(start).Seconds())
		return o.finish(p, desc, models.ModeVideoNative, nil, 0), true
	}

	// Exhausted video-capable providers (or had none to begin with).
	fallback(chain, models.ModeVideoNative, causeAllProvidersFailed)
	return models.AnalysisResult{}, false
}

// tryMultiFrame samples the clip and submits the frame sequence to each
// multi-image-capable provider in order.
func (o *Orchestrator) tryMultiFrame(ctx context.Context, cam *models.Camera, trigger models.MotionTrigger, chain *models.FallbackChain) (models.AnalysisResult, bool) {
	if !trigger.HasClipSource() {
		fallback(chain, models.ModeMultiFrame, causeNoClipSource)
		return models.AnalysisResult{}, false
	}

	start := time.Now()
	clip, err := sampler.OpenObjectClip(ctx, o.store, trigger.ClipKey+"/"+framesPrefix, clipFrameStep)
	if err != nil {
		slog.Warn("open clip frames failed", "camera_id", cam.ID, "clip", trigger.ClipKey, "error", err)
		fallback(chain, models.ModeMultiFrame, causeExtractionFailed)
		return models.AnalysisResult{}, false
	}

	frames := o.sampler.Sample(ctx, clip, o.opts.TargetFrames, o.opts.Strategy)
	if len(frames) == 0 {
		fallback(chain, models.ModeMultiFrame, causeExtractionFailed)
		return models.AnalysisResult{}, false
	}

	for _, p := range o.providers {
		if !p.Supports(models.ModeMultiFrame) {
			continue
		}

		send := frames
		if max := p.MaxImages(); max > 0 && len(send) > max {
			send = send[:max]
		}
		images, err := encodeFrames(send)
		if err != nil {
			slog.Warn("encode frames failed", "error", err)
			break
		}

		desc, err := p.DescribeImages(ctx, images)
		if err != nil {
			slog.Warn("multi-frame provider failed", "provider", p.Name(), "error", err)
			continue
		}

		// The image count actually sent becomes the persisted frame count.
		sent := len(images)
		observability.AnalysisDuration.WithLabelValues(string(models.ModeMultiFrame)).Observe(time.Since(start).Seconds())
		return o.finish(p, desc, models.ModeMultiFrame, &sent, sent), true
	}

	fallback(chain, models.ModeMultiFrame, causeAIFailed)
	return models.AnalysisResult{}, false
}

// trySingleFrame is the terminal stage: it never fails outward. When the
// snapshot is unreadable or every provider errors, it returns a degraded
// result that is still persisted.
func (o *Orchestrator) trySingleFrame(ctx context.Context, trigger models.MotionTrigger, chain *models.FallbackChain) models.AnalysisResult {
	start := time.Now()

	snapshot, err := o.store.GetObject(ctx, trigger.SnapshotKey)
	if err != nil {
		slog.Error("snapshot unavailable", "key", trigger.SnapshotKey, "error", err)
		fallback(chain, models.ModeSingleFrame, causeAllProvidersFailed)
		return degradedResult()
	}

	for _, p := range o.providers {
		if !p.Supports(models.ModeSingleFrame) {
			continue
		}

		desc, err := p.DescribeImage(ctx, snapshot)
		if err != nil {
			slog.Warn("single-frame provider failed", "provider", p.Name(), "error", err)
			continue
		}

		observability.AnalysisDuration.WithLabelValues(string(models.ModeSingleFrame)).Observe(time.Since(start).Seconds())
		return o.finish(p, desc, models.ModeSingleFrame, nil, 1)
	}

	fallback(chain, models.ModeSingleFrame, causeAllProvidersFailed)
	return degradedResult()
}

// finish assembles the result for a successful call, resolving token
// usage and cost.
func (o *Orchestrator) finish(p Provider, desc Description, mode models.AnalysisMode, frameCount *int, imageCount int) models.AnalysisResult {
	prompt, completion, cost, estimated := accountUsage(p, desc, imageCount)

	observability.AnalysisTokens.WithLabelValues(p.Name(), "prompt").Add(float64(prompt))
	observability.AnalysisTokens.WithLabelValues(p.Name(), "completion").Add(float64(completion))
	observability.AnalysisCost.WithLabelValues(p.Name(), string(mode)).Add(cost)

	return models.AnalysisResult{
		Description:      desc.Text,
		Confidence:       desc.Confidence,
		Objects:          desc.Objects,
		Mode:             mode,
		FrameCountUsed:   frameCount,
		Provider:         p.Name(),
		PromptTokens:     prompt,
		CompletionTokens: completion,
		EstimatedCost:    cost,
		IsEstimated:      estimated,
	}
}

func degradedResult() models.AnalysisResult {
	return models.AnalysisResult{
		Description: degradedDescription,
		Mode:        models.ModeSingleFrame,
		IsEstimated: true,
	}
}

func encodeFrames(frames []sampler.Frame) ([][]byte, error) {
	images := make([][]byte, 0, len(frames))
	for _, f := range frames {
		data, err := encodeJPEG(f.Image, 85)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", f.Index, err)
		}
		images = append(images, data)
	}
	return images, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
