package filly

import (
	"fmt"
	"strings"

	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scene"
	"github.com/zurustar/bubocore/pkg/opcode"
)

// signal is what an executed statement (or block) propagates upward to
// implement break/continue without unwinding via panic.
type signal int

const (
	signalNone signal = iota
	signalBreak
	signalContinue
)

// state is the interpreter's mutable state for one Evaluate call.
type state struct {
	scopes       *scene.VariableScopes
	frameLen     float64
	beatsPerStep float64
	cursor       float64
	events       []lang.TimedEvent
}

// Evaluate interprets the program's top-level opcodes against ctx, emitting
// one TimedEvent per note/cc/osc/log call encountered. Unsupported opcodes
// (DefineFunction, RegisterEventHandler, Switch, ArrayAssign, ArrayAccess)
// are accepted but produce no events.
func (l *Language) Evaluate(p lang.Program, ctx *lang.EvaluationContext) []lang.TimedEvent {
	prog, ok := p.(*Program)
	if !ok {
		return nil
	}
	st := &state{
		scopes:       ctx.Scopes,
		frameLen:     ctx.FrameLengthBeats,
		beatsPerStep: ctx.FrameLengthBeats,
	}
	st.execBlock(prog.ops)
	return st.events
}

func (st *state) execBlock(ops []opcode.OpCode) signal {
	for _, op := range ops {
		if sig := st.exec(op); sig != signalNone {
			return sig
		}
	}
	return signalNone
}

func (st *state) exec(op opcode.OpCode) signal {
	switch op.Cmd {
	case opcode.Assign:
		if len(op.Args) != 2 {
			return signalNone
		}
		name, ok := op.Args[0].(opcode.Variable)
		if !ok {
			return signalNone
		}
		st.scopes.SetInstance(string(name), st.evalExpr(op.Args[1]))

	case opcode.Call:
		st.execCall(op.Args)

	case opcode.BinaryOp, opcode.UnaryOp:
		st.evalExpr(op)

	case opcode.If:
		if len(op.Args) < 2 {
			return signalNone
		}
		cond := truthy(st.evalExpr(op.Args[0]))
		then := asBlock(op.Args[1])
		var els []opcode.OpCode
		if len(op.Args) > 2 {
			els = asBlock(op.Args[2])
		}
		if cond {
			return st.execBlock(then)
		}
		return st.execBlock(els)

	case opcode.While:
		if len(op.Args) != 2 {
			return signalNone
		}
		cond, body := op.Args[0], asBlock(op.Args[1])
		for truthy(st.evalExpr(cond)) {
			sig := st.execBlock(body)
			if sig == signalBreak {
				break
			}
		}

	case opcode.For:
		if len(op.Args) != 4 {
			return signalNone
		}
		if initOp, ok := op.Args[0].(opcode.OpCode); ok {
			st.exec(initOp)
		}
		cond, post, body := op.Args[1], op.Args[2], asBlock(op.Args[3])
		for truthy(st.evalExpr(cond)) {
			sig := st.execBlock(body)
			if sig == signalBreak {
				break
			}
			if postOp, ok := post.(opcode.OpCode); ok {
				st.exec(postOp)
			}
		}

	case opcode.Break:
		return signalBreak

	case opcode.Continue:
		return signalContinue

	case opcode.Wait:
		if len(op.Args) != 1 {
			return signalNone
		}
		st.cursor += toFloat(op.Args[0]) * st.beatsPerStep

	case opcode.SetStep:
		if len(op.Args) != 1 {
			return signalNone
		}
		st.beatsPerStep = toFloat(op.Args[0])

	case opcode.ArrayAssign, opcode.ArrayAccess, opcode.DefineFunction,
		opcode.RegisterEventHandler, opcode.Switch:
		// Accepted but not evaluated: outside what the Language Center
		// requires the bundled languages to support.
	}
	return signalNone
}

func asBlock(v any) []opcode.OpCode {
	switch b := v.(type) {
	case []opcode.OpCode:
		return b
	case nil:
		return nil
	default:
		return nil
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	}
	return 0
}

// evalExpr recursively resolves an opcode argument to a scene.Value:
// a literal, a Variable lookup, or a nested BinaryOp/UnaryOp OpCode.
func (st *state) evalExpr(v any) scene.Value {
	switch t := v.(type) {
	case scene.Value:
		return t
	case opcode.Variable:
		if val, ok := st.scopes.Get(string(t)); ok {
			return val
		}
		return scene.Int(0)
	case opcode.OpCode:
		switch t.Cmd {
		case opcode.BinaryOp:
			if len(t.Args) != 3 {
				return scene.Int(0)
			}
			return st.evalBinary(asOperator(t.Args[0]), st.evalExpr(t.Args[1]), st.evalExpr(t.Args[2]))
		case opcode.UnaryOp:
			if len(t.Args) != 2 {
				return scene.Int(0)
			}
			return st.evalUnary(asOperator(t.Args[0]), st.evalExpr(t.Args[1]))
		}
		return scene.Int(0)
	case int:
		return scene.Int(int64(t))
	case int64:
		return scene.Int(t)
	case float64:
		return scene.Float(t)
	case bool:
		return scene.Bool(t)
	case string:
		return scene.Str(t)
	default:
		return scene.Int(0)
	}
}

func asOperator(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func (st *state) evalBinary(op string, a, b scene.Value) scene.Value {
	switch op {
	case "+", "-", "*", "/":
		v, err := scene.Arith(op, a, b)
		if err != nil {
			return scene.Int(0)
		}
		return v
	case "%":
		return scene.Int(int64(a.I) % maxInt64(int64(b.I), 1))
	case "==":
		return scene.Bool(compareEqual(a, b))
	case "!=":
		return scene.Bool(!compareEqual(a, b))
	case "<":
		return scene.Bool(numericOf(a) < numericOf(b))
	case "<=":
		return scene.Bool(numericOf(a) <= numericOf(b))
	case ">":
		return scene.Bool(numericOf(a) > numericOf(b))
	case ">=":
		return scene.Bool(numericOf(a) >= numericOf(b))
	case "&&":
		return scene.Bool(truthy(a) && truthy(b))
	case "||":
		return scene.Bool(truthy(a) || truthy(b))
	}
	return scene.Int(0)
}

func (st *state) evalUnary(op string, a scene.Value) scene.Value {
	switch op {
	case "-":
		if a.Kind == scene.KindInt {
			return scene.Int(-a.I)
		}
		return scene.Float(-numericOf(a))
	case "!":
		return scene.Bool(!truthy(a))
	}
	return a
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func numericOf(v scene.Value) float64 {
	switch v.Kind {
	case scene.KindInt:
		return float64(v.I)
	case scene.KindFloat:
		return v.F
	case scene.KindRational:
		return v.R.Float()
	case scene.KindBool:
		if v.B {
			return 1
		}
		return 0
	}
	return 0
}

func compareEqual(a, b scene.Value) bool {
	if a.Kind == scene.KindString || b.Kind == scene.KindString {
		return a.S == b.S && a.Kind == b.Kind
	}
	return numericOf(a) == numericOf(b)
}

func truthy(v scene.Value) bool {
	switch v.Kind {
	case scene.KindBool:
		return v.B
	case scene.KindString:
		return v.S != ""
	default:
		return numericOf(v) != 0
	}
}

// clampOffset mirrors the stub language's offset clamp: negative or
// out-of-frame offsets fold back to the start of the frame.
func (st *state) clampOffset() float64 {
	offset := st.cursor
	if offset < 0 {
		offset = 0
	}
	if st.frameLen > 0 && offset >= st.frameLen {
		offset = 0
	}
	return offset
}

func (st *state) execCall(args []any) {
	if len(args) == 0 {
		return
	}
	name, ok := args[0].(string)
	if !ok {
		return
	}
	rest := make([]scene.Value, len(args)-1)
	for i, a := range args[1:] {
		rest[i] = st.evalExpr(a)
	}

	switch strings.ToLower(name) {
	case "note":
		if len(rest) != 5 {
			return
		}
		st.events = append(st.events, lang.TimedEvent{
			Offset: st.clampOffset(),
			Event: lang.ConcreteEvent{
				Kind:          lang.EventMidiNote,
				Channel:       int(numericOf(rest[0])),
				Pitch:         int(numericOf(rest[1])),
				Velocity:      int(numericOf(rest[2])),
				DurationBeats: numericOf(rest[3]),
				DeviceSlot:    int(numericOf(rest[4])),
			},
		})
	case "cc":
		if len(rest) != 4 {
			return
		}
		st.events = append(st.events, lang.TimedEvent{
			Offset: st.clampOffset(),
			Event: lang.ConcreteEvent{
				Kind:       lang.EventMidiCC,
				Channel:    int(numericOf(rest[0])),
				CC:         int(numericOf(rest[1])),
				Value:      int(numericOf(rest[2])),
				DeviceSlot: int(numericOf(rest[3])),
			},
		})
	case "osc":
		if len(rest) < 2 {
			return
		}
		oscArgs := make([]any, len(rest)-2)
		for i, v := range rest[1 : len(rest)-1] {
			oscArgs[i] = valueToAny(v)
		}
		st.events = append(st.events, lang.TimedEvent{
			Offset: st.clampOffset(),
			Event: lang.ConcreteEvent{
				Kind:       lang.EventOsc,
				Path:       rest[0].S,
				Args:       oscArgs,
				DeviceSlot: int(numericOf(rest[len(rest)-1])),
			},
		})
	case "log":
		if len(rest) < 1 {
			return
		}
		parts := make([]string, len(rest)-1)
		for i, v := range rest[1:] {
			parts[i] = fmt.Sprintf("%v", valueToAny(v))
		}
		st.events = append(st.events, lang.TimedEvent{
			Offset: st.clampOffset(),
			Event: lang.ConcreteEvent{
				Kind:     lang.EventLog,
				Severity: rest[0].S,
				Text:     strings.Join(parts, " "),
			},
		})
	}
}

func valueToAny(v scene.Value) any {
	switch v.Kind {
	case scene.KindInt:
		return v.I
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
