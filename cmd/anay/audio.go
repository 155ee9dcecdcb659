package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"
	"github.com/hajimehoshi/go-mp3"

	"github.com/anay-go/anay/pkg/core/audio"
)

// malgoRecorder captures PCM16 from the default input device.
type malgoRecorder struct {
	ctx    *malgo.AllocatedContext
	format audio.Format
}

func newMalgoRecorder(format audio.Format) (*malgoRecorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &malgoRecorder{ctx: ctx, format: format}, nil
}

// Record captures d of audio, or less if ctx ends first.
func (r *malgoRecorder) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	var (
		mu  sync.Mutex
		buf = make([]byte, 0, r.format.BytesForDurationMs(int(d/time.Millisecond)))
	)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(r.format.Channels)
	cfg.SampleRate = uint32(r.format.SampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	device, err := malgo.InitDevice(r.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			mu.Lock()
			buf = append(buf, input...)
			mu.Unlock()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	_ = device.Stop()

	mu.Lock()
	defer mu.Unlock()
	return append([]byte(nil), buf...), ctx.Err()
}

func (r *malgoRecorder) Close() {
	_ = r.ctx.Uninit()
	r.ctx.Free()
}

// otoSpeaker plays MP3 through the default output device. oto allows one
// context per process, so the first clip fixes the sample rate.
type otoSpeaker struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
}

func newOtoSpeaker() *otoSpeaker { return &otoSpeaker{} }

func (s *otoSpeaker) context(sampleRate int) (*oto.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		if sampleRate != s.sampleRate {
			return nil, fmt.Errorf("sample rate %d differs from output rate %d", sampleRate, s.sampleRate)
		}
		return s.ctx, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready
	s.ctx, s.sampleRate = ctx, sampleRate
	return ctx, nil
}

// PlayMP3 decodes r and blocks until playback ends or ctx is canceled.
func (s *otoSpeaker) PlayMP3(ctx context.Context, r io.Reader) error {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	octx, err := s.context(dec.SampleRate())
	if err != nil {
		return err
	}

	player := octx.NewPlayer(dec)
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return nil
		case <-ticker.C:
		}
	}
	return player.Err()
}
