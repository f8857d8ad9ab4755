package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"interviewcoach/internal/ports"
)

const playbackPoll = 20 * time.Millisecond

// OtoPlayer plays synthesized PCM on the default output device. oto allows a
// single context per process, so every clip must share its format.
type OtoPlayer struct {
	sampleRate int
	channels   int

	once    sync.Once
	otoCtx  *oto.Context
	initErr error
}

func NewOtoPlayer(sampleRate int, channels int) *OtoPlayer {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}
	return &OtoPlayer{sampleRate: sampleRate, channels: channels}
}

func (p *OtoPlayer) init() error {
	p.once.Do(func() {
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   p.sampleRate,
			ChannelCount: p.channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			p.initErr = fmt.Errorf("init speaker: %w", err)
			return
		}
		<-ready
		p.otoCtx = otoCtx
	})
	return p.initErr
}

// Play blocks until the clip has drained or ctx is done. Cancellation
// silences the clip immediately.
func (p *OtoPlayer) Play(ctx context.Context, clip ports.Audio) error {
	if err := checkFormat(clip, p.sampleRate, p.channels); err != nil {
		return err
	}
	if len(clip.PCM) == 0 {
		return nil
	}
	if err := p.init(); err != nil {
		return err
	}

	player := p.otoCtx.NewPlayer(bytes.NewReader(clip.PCM))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(playbackPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return player.Err()
			}
		}
	}
}

func checkFormat(clip ports.Audio, sampleRate int, channels int) error {
	if clip.SampleRate == 0 && clip.Channels == 0 {
		return nil
	}
	if clip.SampleRate != sampleRate || clip.Channels != channels {
		return errors.New("audio format " + formatLabel(clip.SampleRate, clip.Channels) +
			" does not match speaker " + formatLabel(sampleRate, channels))
	}
	return nil
}

func formatLabel(sampleRate int, channels int) string {
	return fmt.Sprintf("%dHz/%dch", sampleRate, channels)
}
