package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/snarg/clipforge/internal/database"
	"github.com/snarg/clipforge/internal/metrics"
	"github.com/snarg/clipforge/internal/transcribe"
)

// SubmitVideo schedules the processing pipeline for an uploaded video.
// Returns false if a pipeline for this video is already running.
func (p *Pipeline) SubmitVideo(id string) bool {
	return p.runner.Submit("video:"+id, func(ctx context.Context) {
		p.processVideo(ctx, id)
	})
}

// processVideo drives one video job through
// processing → transcribing → ready, resolving to error on any stage
// failure. Every transition is a single document patch; no retries.
func (p *Pipeline) processVideo(ctx context.Context, id string) {
	log := p.log.With().Str("video_id", id).Logger()

	defer func() {
		if rv := recover(); rv != nil {
			log.Error().Interface("panic", rv).Msg("video pipeline panicked")
			p.failVideo(id, fmt.Sprintf("internal error: %v", rv))
		}
	}()

	video, err := p.opts.Store.GetVideo(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("video record not found, dropping job")
		return
	}

	// uploading → processing: the file was durably stored before submission
	if err := p.opts.Store.PatchVideo(ctx, id, map[string]any{
		"status": database.VideoProcessing,
	}); err != nil {
		log.Error().Err(err).Msg("status update failed")
		return
	}

	srcPath := p.opts.Roots.UploadPath(video.Filename)

	// Container duration. A failed probe is not fatal; the duration just
	// stays at zero.
	duration, err := p.opts.Tools.Duration(ctx, srcPath)
	if err != nil {
		log.Warn().Err(err).Msg("duration probe failed")
		duration = 0
	}

	audioPath := p.opts.Roots.AudioPath(id)
	extractStart := time.Now()
	if err := p.opts.Tools.ExtractAudio(ctx, srcPath, audioPath); err != nil {
		log.Warn().Err(err).Msg("audio extraction failed")
		p.failVideo(id, "failed to extract audio: "+err.Error())
		return
	}
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())

	// processing → transcribing, duration recorded
	if err := p.opts.Store.PatchVideo(ctx, id, map[string]any{
		"status":   database.VideoTranscribing,
		"duration": duration,
	}); err != nil {
		log.Error().Err(err).Msg("status update failed")
		return
	}

	tctx, cancel := context.WithTimeout(ctx, p.opts.TranscribeTimeout)
	defer cancel()

	transcribeStart := time.Now()
	raw, err := p.opts.Provider.Transcribe(tctx, audioPath)
	if err != nil {
		log.Warn().Err(err).Msg("transcription failed")
		p.failVideo(id, "transcription failed: "+err.Error())
		return
	}
	metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(transcribeStart).Seconds())

	segments := transcribe.Align(raw)
	transcript, err := json.Marshal(segments)
	if err != nil {
		p.failVideo(id, "encode transcript: "+err.Error())
		return
	}

	// transcribing → ready: transcript and status land in one update, so a
	// reader never sees ready without a transcript.
	if err := p.opts.Store.PatchVideo(ctx, id, map[string]any{
		"status":     database.VideoReady,
		"transcript": json.RawMessage(transcript),
		"duration":   duration,
	}); err != nil {
		log.Error().Err(err).Msg("status update failed")
		return
	}
	metrics.VideosProcessedTotal.WithLabelValues(database.VideoReady).Inc()

	// Best-effort scratch cleanup; never fails the job.
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Str("path", audioPath).Msg("scratch audio cleanup failed")
	}

	log.Info().
		Float64("duration", duration).
		Int("segments", len(segments)).
		Msg("video ready")
}

// failVideo resolves a video job to its terminal error state. Uses a fresh
// context: the job's own context may already be cancelled or expired, and
// the failure must still be recorded.
func (p *Pipeline) failVideo(id, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.opts.Store.PatchVideo(ctx, id, map[string]any{
		"status":        database.VideoError,
		"error_message": msg,
	}); err != nil {
		p.log.Error().Err(err).Str("video_id", id).Msg("failed to record video error")
		return
	}
	metrics.VideosProcessedTotal.WithLabelValues(database.VideoError).Inc()
}
