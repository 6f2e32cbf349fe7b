// Package stub implements a minimal second Language Center plugin: a
// line-oriented format with `#` comments and four statement forms
// (note/cc/osc/log), included to prove the registry is a true plugin point
// and to exercise available_languages with more than one entry.
package stub

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scene"
)

const Name = "stub"

// Language implements lang.Language.
type Language struct{}

func New() *Language { return &Language{} }

func (l *Language) Name() string { return Name }

// statement is one parsed line: a command name plus raw argument tokens and
// an optional "@offset" beat offset (default 0).
type statement struct {
	cmd    string
	args   []string
	offset float64
}

// program is the stub language's opaque Program: just its parsed statements.
type program struct {
	statements []statement
}

func (p *program) Language() string { return Name }

// Compile parses source into a program. Character offsets in
// CompilationError are computed from a running byte count as the source is
// scanned line by line.
func (l *Language) Compile(source string, ctx lang.CompileContext) (lang.Program, *lang.CompilationError) {
	var statements []statement
	offset := 0

	for _, line := range strings.Split(source, "\n") {
		lineStart := offset
		offset += len(line) + 1 // account for the stripped '\n'

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Fields(trimmed)
		cmd := strings.ToLower(fields[0])
		rest := fields[1:]

		beatOffset := 0.0
		if n := len(rest); n > 0 && strings.HasPrefix(rest[n-1], "@") {
			v, err := strconv.ParseFloat(rest[n-1][1:], 64)
			if err != nil {
				return nil, &lang.CompilationError{
					From: lineStart, To: offset, Lang: Name,
					Info: fmt.Sprintf("invalid beat offset %q: %v", rest[n-1], err),
				}
			}
			beatOffset = v
			rest = rest[:n-1]
		}

		switch cmd {
		case "note":
			if len(rest) != 5 {
				return nil, &lang.CompilationError{From: lineStart, To: offset, Lang: Name,
					Info: "note requires channel pitch velocity duration_beats slot"}
			}
		case "cc":
			if len(rest) != 4 {
				return nil, &lang.CompilationError{From: lineStart, To: offset, Lang: Name,
					Info: "cc requires channel cc value slot"}
			}
		case "osc":
			if len(rest) < 2 {
				return nil, &lang.CompilationError{From: lineStart, To: offset, Lang: Name,
					Info: "osc requires path [args...] slot"}
			}
		case "log":
			if len(rest) < 1 {
				return nil, &lang.CompilationError{From: lineStart, To: offset, Lang: Name,
					Info: "log requires at least a severity"}
			}
		default:
			return nil, &lang.CompilationError{From: lineStart, To: offset, Lang: Name,
				Info: fmt.Sprintf("unknown statement %q", cmd)}
		}

		statements = append(statements, statement{cmd: cmd, args: rest, offset: beatOffset})
	}

	return &program{statements: statements}, nil
}

// resolve interprets a token as a literal int/float/string, or a variable
// reference when prefixed with '$'.
func resolve(token string, scopes *scene.VariableScopes) any {
	if strings.HasPrefix(token, "$") {
		if v, ok := scopes.Get(token[1:]); ok {
			return valueToAny(v)
		}
		return nil
	}
	if i, err := strconv.Atoi(token); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return token
}

func valueToAny(v scene.Value) any {
	switch v.Kind {
	case scene.KindInt:
		return int(v.I)
	case scene.KindFloat:
		return v.F
	case scene.KindString:
		return v.S
	case scene.KindBool:
		return v.B
	default:
		return nil
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}

// Evaluate interprets the program's statements, resolving each argument
// through the evaluation context's variable scopes, and emits one
// ConcreteEvent per statement at its declared beat offset.
func (l *Language) Evaluate(p lang.Program, ctx *lang.EvaluationContext) []lang.TimedEvent {
	prog, ok := p.(*program)
	if !ok {
		return nil
	}

	var events []lang.TimedEvent
	for _, st := range prog.statements {
		resolved := make([]any, len(st.args))
		for i, a := range st.args {
			resolved[i] = resolve(a, ctx.Scopes)
		}

		offset := st.offset
		if offset < 0 {
			offset = 0
		}
		if offset >= ctx.FrameLengthBeats && ctx.FrameLengthBeats > 0 {
			offset = 0
		}

		switch st.cmd {
		case "note":
			events = append(events, lang.TimedEvent{
				Offset: offset,
				Event: lang.ConcreteEvent{
					Kind:          lang.EventMidiNote,
					Channel:       asInt(resolved[0]),
					Pitch:         asInt(resolved[1]),
					Velocity:      asInt(resolved[2]),
					DurationBeats: asFloat(resolved[3]),
					DeviceSlot:    asInt(resolved[4]),
				},
			})
		case "cc":
			events = append(events, lang.TimedEvent{
				Offset: offset,
				Event: lang.ConcreteEvent{
					Kind:       lang.EventMidiCC,
					Channel:    asInt(resolved[0]),
					CC:         asInt(resolved[1]),
					Value:      asInt(resolved[2]),
					DeviceSlot: asInt(resolved[3]),
				},
			})
		case "osc":
			slotArg := resolved[len(resolved)-1]
			events = append(events, lang.TimedEvent{
				Offset: offset,
				Event: lang.ConcreteEvent{
					Kind:       lang.EventOsc,
					Path:       fmt.Sprintf("%v", resolved[0]),
					Args:       resolved[1 : len(resolved)-1],
					DeviceSlot: asInt(slotArg),
				},
			})
		case "log":
			text := ""
			if len(resolved) > 1 {
				parts := make([]string, len(resolved)-1)
				for i, v := range resolved[1:] {
					parts[i] = fmt.Sprintf("%v", v)
				}
				text = strings.Join(parts, " ")
			}
			events = append(events, lang.TimedEvent{
				Offset: offset,
				Event: lang.ConcreteEvent{
					Kind:     lang.EventLog,
					Severity: fmt.Sprintf("%v", resolved[0]),
					Text:     text,
				},
			})
		}
	}
	return events
}
