package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/media"
	"github.com/snarg/clipforge/internal/metrics"
)

// SubmitClip schedules assembly of a clip from its source video.
// The clip document and source filename are captured at submission; the
// clip job never re-reads the video record. Returns false if a pipeline
// for this clip is already running.
func (p *Pipeline) SubmitClip(clip *database.ClipDoc, sourceFilename string) bool {
	return p.runner.Submit("clip:"+clip.ID, func(ctx context.Context) {
		p.processClip(ctx, clip, sourceFilename)
	})
}

// processClip drives one clip job to ready or error. The requested ranges
// were validated (non-empty, start < end) before the job was created;
// assembly works on a sorted copy and any ffmpeg failure is terminal.
func (p *Pipeline) processClip(ctx context.Context, clip *database.ClipDoc, sourceFilename string) {
	log := p.log.With().Str("clip_id", clip.ID).Str("video_id", clip.VideoID).Logger()

	defer func() {
		if rv := recover(); rv != nil {
			log.Error().Interface("panic", rv).Msg("clip pipeline panicked")
			p.failClip(clip.ID, fmt.Sprintf("internal error: %v", rv))
		}
	}()

	ranges := make([]media.Range, len(clip.Segments))
	for i, s := range clip.Segments {
		ranges[i] = media.Range{Start: s.Start, End: s.End}
	}

	srcPath := p.opts.Roots.UploadPath(sourceFilename)
	outPath := p.opts.Roots.ClipPath(clip.Filename)

	actx, cancel := context.WithTimeout(ctx, p.opts.AssembleTimeout)
	defer cancel()

	start := time.Now()
	if err := p.opts.Tools.Assemble(actx, srcPath, outPath, ranges); err != nil {
		log.Warn().Err(err).Msg("clip assembly failed")
		p.failClip(clip.ID, "failed to create clip: "+err.Error())
		return
	}
	metrics.StageDuration.WithLabelValues("assemble").Observe(time.Since(start).Seconds())

	if err := p.opts.Store.PatchClip(ctx, clip.ID, map[string]any{
		"status": database.ClipReady,
	}); err != nil {
		log.Error().Err(err).Msg("status update failed")
		return
	}
	metrics.ClipsProcessedTotal.WithLabelValues(database.ClipReady).Inc()

	if p.opts.Archiver != nil {
		p.opts.Archiver.Enqueue(outPath)
	}

	log.Info().
		Int("ranges", len(ranges)).
		Dur("assembly_ms", time.Since(start)).
		Msg("clip ready")
}

// failClip resolves a clip job to its terminal error state with a fresh
// context, mirroring failVideo.
func (p *Pipeline) failClip(id, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.opts.Store.PatchClip(ctx, id, map[string]any{
		"status":        database.ClipError,
		"error_message": msg,
	}); err != nil {
		p.log.Error().Err(err).Str("clip_id", id).Msg("failed to record clip error")
		return
	}
	metrics.ClipsProcessedTotal.WithLabelValues(database.ClipError).Inc()
}
