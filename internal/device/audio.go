package device

import (
	"fmt"
	"io"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

const audioEngineSampleRate = 44100

// AudioTrigger is the translated form of an AudioEngineTrigger ConcreteEvent:
// a track (mapped to a MIDI channel), a sample/preset name, and free-form
// params (at minimum "note" and "velocity", defaulting to 60/100).
type AudioTrigger struct {
	Track      string
	SourceName string
	Channel    int
	Note       int
	Velocity   int
}

// audioHandle drives a meltysynth synthesizer directly rather than through
// the gomidi bridge the teacher used for file playback: triggers originate
// from script evaluation, not from an SMF track, so there is no MIDI stream
// to bridge from.
type audioHandle struct {
	mu   sync.Mutex
	synt *meltysynth.Synthesizer
}

func (h *audioHandle) Send(payload any) error {
	t, ok := payload.(AudioTrigger)
	if !ok {
		return fmt.Errorf("device: audio handle got non-AudioTrigger payload %T", payload)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	const noteOn = 0x90
	h.synt.ProcessMidiMessage(int32(t.Channel), noteOn, int32(t.Note), int32(t.Velocity))
	return nil
}

func (h *audioHandle) Close() error { return nil }

// CreateAudioEngine registers an AudioEngine output backed by a soundfont
// read from r.
func (r *Registry) CreateAudioEngine(name string, soundFont io.Reader) error {
	sf, err := meltysynth.NewSoundFont(soundFont)
	if err != nil {
		return fmt.Errorf("device: loading soundfont for %q: %w", name, err)
	}
	settings := meltysynth.NewSynthesizerSettings(audioEngineSampleRate)
	synt, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return fmt.Errorf("device: creating synthesizer for %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outputs[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}
	r.outputs[name] = &entry{
		name: name, kind: KindAudioEngine, direction: DirOut,
		connected: true,
		h:         &audioHandle{synt: synt},
	}
	return nil
}
