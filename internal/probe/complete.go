package probe

import (
	"context"
	"fmt"
	"math"

	"github.com/alkime/podbook/internal/episode"
)

// Complete fills the nominal durations an episode record leaves out, so the
// timeline is sized before any stream has loaded.
func (p *Prober) Complete(ctx context.Context, ep *episode.Episode) error {
	if ep.DurationSeconds <= 0 && ep.AudioURL != "" {
		secs, err := p.seconds(ctx, ep.AudioURL)
		if err != nil {
			return fmt.Errorf("failed to probe episode audio: %w", err)
		}
		ep.DurationSeconds = secs
	}

	if ep.HasIntro() && ep.IntroDurationSeconds == nil {
		secs, err := p.seconds(ctx, *ep.IntroAudioURL)
		if err != nil {
			return fmt.Errorf("failed to probe intro: %w", err)
		}
		ep.IntroDurationSeconds = &secs
	}

	if ep.HasOutro() && ep.OutroDurationSeconds == nil {
		secs, err := p.seconds(ctx, *ep.OutroAudioURL)
		if err != nil {
			return fmt.Errorf("failed to probe outro: %w", err)
		}
		ep.OutroDurationSeconds = &secs
	}

	return nil
}

func (p *Prober) seconds(ctx context.Context, uri string) (int, error) {
	d, err := p.Duration(ctx, uri)
	if err != nil {
		return 0, err
	}

	return int(math.Ceil(d.Seconds())), nil
}
