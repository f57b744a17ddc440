package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/pkg/channels"
	"github.com/gin-gonic/gin"
)

// PlaybackResponse is the wire form of playback.Snapshot. Times are seconds.
type PlaybackResponse struct {
	EpisodeID        string  `json:"episode_id"`
	Status           string  `json:"status"`
	Phase            string  `json:"phase"`
	LocalTime        float64 `json:"local_time"`
	CombinedPosition float64 `json:"combined_position"`
	GlobalDuration   float64 `json:"global_duration"`
	PhaseDuration    float64 `json:"phase_duration"`
	IsPlaying        bool    `json:"is_playing"`
	IsLoading        bool    `json:"is_loading"`
	Error            string  `json:"error,omitempty"`
}

func newPlaybackResponse(s playback.Snapshot) PlaybackResponse {
	r := PlaybackResponse{
		EpisodeID:        s.EpisodeID,
		Status:           s.Status.String(),
		Phase:            s.Phase.String(),
		LocalTime:        s.LocalTime.Seconds(),
		CombinedPosition: s.CombinedPosition.Seconds(),
		GlobalDuration:   s.GlobalDuration.Seconds(),
		PhaseDuration:    s.PhaseDuration.Seconds(),
		IsPlaying:        s.IsPlaying,
		IsLoading:        s.IsLoading,
	}
	if s.LastError != nil {
		r.Error = s.LastError.Error()
	}

	return r
}

type SegmentResponse struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type TranscriptResponse struct {
	Segments        []SegmentResponse `json:"segments"`
	CurrentSegment  *int              `json:"current_segment"`
	IsUserScrolling bool              `json:"is_user_scrolling"`
}

type seekRequest struct {
	Position *float64 `json:"position" binding:"required"`
}

type skipRequest struct {
	// Seconds is signed: negative skips backward. Zero uses the default
	// skip interval forward.
	Seconds float64 `json:"seconds"`
}

type selectRequest struct {
	SegmentID *int `json:"segment_id" binding:"required"`
}

type askRequest struct {
	Text string `json:"text" binding:"required"`
}

// onLoop runs fn on the engine's scheduling context.
func (s *Server) onLoop(ctx context.Context, fn func() error) error {
	var opErr error
	if err := s.engine.Loop.Do(ctx, func() { opErr = fn() }); err != nil {
		return err
	}

	return opErr
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, playback.ErrNoEpisode),
		errors.Is(err, playback.ErrSuspended),
		errors.Is(err, timeline.ErrTimelineUninitialized),
		errors.Is(err, interjection.ErrInterjectionActive):
		status = http.StatusConflict
	case errors.Is(err, playback.ErrDisposed), errors.Is(err, channels.ErrLoopStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, transcript.ErrUnknownSegment):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// control runs op on the loop and answers with the resulting snapshot.
func (s *Server) control(c *gin.Context, op func() error) {
	var snap playback.Snapshot
	err := s.onLoop(c.Request.Context(), func() error {
		if err := op(); err != nil {
			return err
		}
		snap = s.engine.Player.Snapshot()
		return nil
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newPlaybackResponse(snap))
}

func (s *Server) handleSnapshot(c *gin.Context) {
	s.control(c, func() error { return nil })
}

func (s *Server) handlePlay(c *gin.Context) {
	s.control(c, s.engine.Player.Play)
}

func (s *Server) handlePause(c *gin.Context) {
	s.control(c, s.engine.Player.Pause)
}

func (s *Server) handleToggle(c *gin.Context) {
	s.control(c, s.engine.Player.TogglePlayPause)
}

func (s *Server) handleSeek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Position < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position must not be negative"})
		return
	}

	g := seconds(*req.Position)
	s.control(c, func() error { return s.engine.Player.Seek(g) })
}

func (s *Server) handleSkip(c *gin.Context) {
	var req skipRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	d := seconds(req.Seconds)
	s.control(c, func() error {
		if d < 0 {
			return s.engine.Player.SkipBackward(-d)
		}
		return s.engine.Player.SkipForward(d)
	})
}

func (s *Server) handleTranscript(c *gin.Context) {
	if s.engine.Transcript == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transcript"})
		return
	}

	var resp TranscriptResponse
	err := s.onLoop(c.Request.Context(), func() error {
		segs := s.engine.Transcript.Segments()
		resp.Segments = make([]SegmentResponse, len(segs))
		for i, seg := range segs {
			resp.Segments[i] = SegmentResponse{
				ID:    seg.ID,
				Start: seg.Start.Seconds(),
				End:   seg.End.Seconds(),
				Text:  seg.Text,
			}
		}

		st := s.engine.Transcript.State()
		if st.HasSegment {
			id := st.CurrentSegmentID
			resp.CurrentSegment = &id
		}
		resp.IsUserScrolling = st.IsUserScrolling
		return nil
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSelectSegment(c *gin.Context) {
	if s.engine.Transcript == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transcript"})
		return
	}

	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.control(c, func() error { return s.engine.Transcript.UserDidSelectSegment(*req.SegmentID) })
}

func (s *Server) handleAsk(c *gin.Context) {
	if s.engine.Questions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "questions are not enabled"})
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.engine.Questions.Ask(c.Request.Context(), req.Text); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "asked"})
}

// maxSeconds is the longest time.Duration, in seconds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// seconds converts s to a Duration, saturating instead of overflowing.
func seconds(s float64) time.Duration {
	switch {
	case s >= maxSeconds:
		return time.Duration(math.MaxInt64)
	case s <= -maxSeconds:
		return -time.Duration(math.MaxInt64)
	}

	return time.Duration(s * float64(time.Second))
}
