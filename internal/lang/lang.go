// Package lang defines the Language Center's plugin contract (§4.D): a
// registry of embedded languages, each compiling source text to an opaque
// Program and evaluating a Program against a per-frame EvaluationContext to
// produce timed ConcreteEvents.
package lang

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/zurustar/bubocore/internal/scene"
)

// Program is an opaque AST-like value owned by a language implementation.
// The Language Center and Scheduler never inspect it; they only hold it and
// pass it back to the owning Language's Evaluate.
type Program interface {
	// Language returns the name of the language that produced this Program,
	// used to route Evaluate calls back to the correct implementation.
	Language() string
}

// CompilationError reports a located compile failure using character
// offsets (not line/column), per §4.D.
type CompilationError struct {
	From int
	To   int
	Info string
	Lang string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s[%d:%d]: %s", e.Lang, e.From, e.To, e.Info)
}

// CompileContext carries ambient information a compile step may need
// (currently just the language name and frame identity, for diagnostics).
type CompileContext struct {
	Language string
	Line     int
	Frame    int
}

// TimedEvent pairs a ConcreteEvent with its offset (in beats) relative to
// the start of the frame that produced it. Offset must be in
// [0, frame_length_beats).
type TimedEvent struct {
	Event  ConcreteEvent
	Offset float64
}

// ConcreteEvent is the tagged sum of device-bound events a Program's
// evaluation may emit (§3).
type ConcreteEvent struct {
	Kind EventKind

	// MidiNote / MidiCC
	Channel int
	Pitch   int
	Velocity int
	DurationBeats float64

	CC    int
	Value int

	// Osc
	Path string
	Args []any

	// AudioEngineTrigger
	Track      string
	SourceName string
	Params     map[string]any

	// Log
	Severity string
	Text     string

	DeviceSlot int
}

// EventKind tags the ConcreteEvent variant.
type EventKind int

const (
	EventMidiNote EventKind = iota
	EventMidiCC
	EventOsc
	EventAudioEngineTrigger
	EventLog
)

// EvaluationContext is assembled per-frame by the Scheduler and passed by
// reference to a Program's Evaluate call. Implementations must not retain
// references past the call (§9).
type EvaluationContext struct {
	FrameLengthBeats float64
	Scopes           *scene.VariableScopes
	Rand             *rand.Rand
}

// SeedFor deterministically derives a random seed from
// (tempoCycleIndex, lineIndex, frameIndex) so that the same performance at
// the same clock state evaluates identically (§4.D). It uses a fixed-
// multiplier integer mix rather than hash/maphash, which is randomized per
// process and would break that determinism.
func SeedFor(tempoCycleIndex, lineIndex, frameIndex int64) int64 {
	const (
		m1 = 0x9E3779B97F4A7C15
		m2 = 0xBF58476D1CE4E5B9
		m3 = 0x94D049BB133111EB
	)
	h := uint64(tempoCycleIndex) * m1
	h ^= h >> 30
	h += uint64(lineIndex) * m2
	h ^= h >> 27
	h += uint64(frameIndex) * m3
	h ^= h >> 31
	return int64(h)
}

// NewEvaluationContext builds an EvaluationContext with a seeded RNG.
func NewEvaluationContext(frameLengthBeats float64, scopes *scene.VariableScopes, tempoCycleIndex, lineIndex, frameIndex int64) *EvaluationContext {
	seed := SeedFor(tempoCycleIndex, lineIndex, frameIndex)
	return &EvaluationContext{
		FrameLengthBeats: frameLengthBeats,
		Scopes:           scopes,
		Rand:             rand.New(rand.NewSource(seed)),
	}
}

// Language is the plugin contract each embedded language implements.
type Language interface {
	Name() string
	Compile(source string, ctx CompileContext) (Program, *CompilationError)
	Evaluate(program Program, ctx *EvaluationContext) []TimedEvent
}

// Registry holds the mapping from language name to implementation.
type Registry struct {
	mu        sync.RWMutex
	languages map[string]Language
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{languages: make(map[string]Language)}
}

// Register adds a language implementation, keyed by its own Name().
func (r *Registry) Register(l Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages[l.Name()] = l
}

// Get returns the language implementation for name, if any.
func (r *Registry) Get(name string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.languages[name]
	return l, ok
}

// AvailableLanguages lists the registered language names, for the Hello
// handshake's available_languages field.
func (r *Registry) AvailableLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.languages))
	for name := range r.languages {
		names = append(names, name)
	}
	return names
}

// Compile routes a compile request to the named language.
func (r *Registry) Compile(langName, source string, ctx CompileContext) (Program, *CompilationError) {
	l, ok := r.Get(langName)
	if !ok {
		return nil, &CompilationError{Lang: langName, Info: fmt.Sprintf("unknown language %q", langName)}
	}
	return l.Compile(source, ctx)
}

// Evaluate routes an evaluate request to the Program's owning language.
func (r *Registry) Evaluate(program Program, ctx *EvaluationContext) ([]TimedEvent, error) {
	l, ok := r.Get(program.Language())
	if !ok {
		return nil, fmt.Errorf("lang: unknown language %q for program", program.Language())
	}
	return l.Evaluate(program, ctx), nil
}
