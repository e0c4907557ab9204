package transcript

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-audio/wav"
)

// ErrNoSpeech is returned by SpeechGate for clips the energy detector
// considers silent. It wraps ErrEmptyTranscript.
var ErrNoSpeech = fmt.Errorf("%w: no speech detected", ErrEmptyTranscript)

// SpeechGate answers ErrNoSpeech for 16-bit PCM WAV clips that never carry
// enough voiced audio, without calling Next. Anything it cannot decode is
// forwarded untouched.
type SpeechGate struct {
	Next Transcriber
	// Threshold is the RMS level a 10ms frame must reach to vote speech.
	Threshold float64
	// MinSpeech is the voiced duration a clip needs to be forwarded.
	MinSpeech time.Duration
}

func NewSpeechGate(next Transcriber, threshold float64) *SpeechGate {
	return &SpeechGate{Next: next, Threshold: threshold, MinSpeech: 100 * time.Millisecond}
}

func (g *SpeechGate) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if g.Threshold > 0 {
		if voiced, ok := voicedDuration(audio, g.Threshold); ok && voiced < g.MinSpeech {
			return "", ErrNoSpeech
		}
	}
	return g.Next.Transcribe(ctx, audio, language)
}

// voicedDuration decodes clip and measures how long the smoothed energy
// detector voted speech on the first channel. ok is false when clip is not
// 16-bit PCM WAV.
func voicedDuration(clip []byte, threshold float64) (time.Duration, bool) {
	d := wav.NewDecoder(bytes.NewReader(clip))
	if !d.IsValidFile() || d.WavAudioFormat != 1 || d.BitDepth != 16 {
		return 0, false
	}
	buf, err := d.FullPCMBuffer()
	if err != nil || buf.Format == nil {
		return 0, false
	}
	chans, rate := buf.Format.NumChannels, buf.Format.SampleRate
	if chans < 1 || rate < 100 {
		return 0, false
	}

	vad := energyVAD{threshold: threshold, smoothN: 4}
	frameLen := rate / 100
	frame := make([]int, 0, frameLen)
	voiced := 0
	for i := 0; i+chans <= len(buf.Data); i += chans {
		frame = append(frame, buf.Data[i])
		if len(frame) < frameLen {
			continue
		}
		if vad.isSpeech(frame) {
			voiced++
		}
		frame = frame[:0]
	}
	return time.Duration(voiced) * 10 * time.Millisecond, true
}

// energyVAD votes per frame on RMS energy and smooths with a majority over
// the last smoothN votes.
type energyVAD struct {
	threshold float64
	smoothN   int
	win       []bool
}

func (v *energyVAD) isSpeech(frame []int) bool {
	if len(frame) == 0 {
		return false
	}
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	v.win = append(v.win, math.Sqrt(sum/float64(len(frame))) >= v.threshold)
	if len(v.win) > v.smoothN {
		v.win = v.win[len(v.win)-v.smoothN:]
	}
	n := 0
	for _, b := range v.win {
		if b {
			n++
		}
	}
	return n*2 >= len(v.win)
}
