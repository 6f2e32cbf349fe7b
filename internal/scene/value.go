package scene

import (
	"fmt"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindRational
	KindBool
	KindString
	KindDuration
	KindProgram
	KindMap
	KindVec
	KindBlob
)

// Rational is a sign,num,den rational value. Rat keeps Den > 0 by moving the
// sign onto Num; values are not reduced to lowest terms.
type Rational struct {
	Num int64
	Den int64
}

func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Value is the closed sum type for script variables (§4.D). Exactly one of
// the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind

	I   int64
	F   float64
	R   Rational
	B   bool
	S   string
	Dur time.Duration
	// Prog holds an opaque compiled program reference (by identity; scene
	// package never inspects it).
	Prog any
	Map  map[string]Value
	Vec  []Value
	Blob []byte
}

func Int(i int64) Value        { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value    { return Value{Kind: KindFloat, F: f} }
func Rat(num, den int64) Value {
	if den < 0 {
		num, den = -num, -den
	}
	return Value{Kind: KindRational, R: Rational{Num: num, Den: den}}
}
func Bool(b bool) Value        { return Value{Kind: KindBool, B: b} }
func Str(s string) Value       { return Value{Kind: KindString, S: s} }
func Dur(d time.Duration) Value { return Value{Kind: KindDuration, Dur: d} }
func MapOf(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }
func VecOf(v []Value) Value    { return Value{Kind: KindVec, Vec: v} }
func Blob(b []byte) Value      { return Value{Kind: KindBlob, Blob: b} }

// promote returns the common Kind that a and b must both be coerced to
// before a binary arithmetic op, following the fixed ladder Integer ⊂
// Rational ⊂ Float. Duration only combines with Duration; Map/Vec only
// combine with their own kind.
func promote(a, b Kind) (Kind, error) {
	if a == b {
		return a, nil
	}
	numeric := map[Kind]int{KindInt: 0, KindRational: 1, KindFloat: 2}
	ra, aok := numeric[a]
	rb, bok := numeric[b]
	if aok && bok {
		if ra > rb {
			return a, nil
		}
		return b, nil
	}
	return 0, fmt.Errorf("cannot combine %v with %v", a, b)
}

func (v Value) asFloat() float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.I)
	case KindRational:
		return v.R.Float()
	case KindFloat:
		return v.F
	}
	return 0
}

func (v Value) asRational() Rational {
	switch v.Kind {
	case KindInt:
		return Rational{Num: v.I, Den: 1}
	case KindRational:
		return v.R
	}
	return Rational{}
}

// Arith dispatches a binary arithmetic operator across the promotion
// ladder. Supported ops: "+", "-", "*", "/", "union", "intersect",
// "symdiff", "diff" (the latter four for Map/Vec set algebra).
func Arith(op string, a, b Value) (Value, error) {
	switch op {
	case "union", "intersect", "symdiff", "diff":
		return setOp(op, a, b)
	}

	if a.Kind == KindDuration || b.Kind == KindDuration {
		if a.Kind != KindDuration || b.Kind != KindDuration {
			return Value{}, fmt.Errorf("duration only combines with duration, got %v and %v", a.Kind, b.Kind)
		}
		return durationArith(op, a.Dur, b.Dur)
	}

	kind, err := promote(a.Kind, b.Kind)
	if err != nil {
		return Value{}, err
	}

	switch kind {
	case KindInt:
		return intArith(op, a.I, b.I)
	case KindRational:
		return rationalArith(op, a.asRational(), b.asRational())
	case KindFloat:
		return floatArith(op, a.asFloat(), b.asFloat())
	}
	return Value{}, fmt.Errorf("unsupported arithmetic kind %v", kind)
}

func intArith(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return Int(a + b), nil
	case "-":
		return Int(a - b), nil
	case "*":
		return Int(a * b), nil
	case "/":
		if b == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		if a%b == 0 {
			return Int(a / b), nil
		}
		return Rat(a, b), nil
	}
	return Value{}, fmt.Errorf("unsupported integer operator %q", op)
}

func rationalArith(op string, a, b Rational) (Value, error) {
	switch op {
	case "+":
		return Rat(a.Num*b.Den+b.Num*a.Den, a.Den*b.Den), nil
	case "-":
		return Rat(a.Num*b.Den-b.Num*a.Den, a.Den*b.Den), nil
	case "*":
		return Rat(a.Num*b.Num, a.Den*b.Den), nil
	case "/":
		if b.Num == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return Rat(a.Num*b.Den, a.Den*b.Num), nil
	}
	return Value{}, fmt.Errorf("unsupported rational operator %q", op)
}

func floatArith(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return Float(a + b), nil
	case "-":
		return Float(a - b), nil
	case "*":
		return Float(a * b), nil
	case "/":
		if b == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return Float(a / b), nil
	}
	return Value{}, fmt.Errorf("unsupported float operator %q", op)
}

func durationArith(op string, a, b time.Duration) (Value, error) {
	switch op {
	case "+":
		return Dur(a + b), nil
	case "-":
		return Dur(a - b), nil
	}
	return Value{}, fmt.Errorf("unsupported duration operator %q", op)
}

// setOp implements ∪, ∩, symmetric difference, and difference over Map
// (keyed set) and Vec (treated as a set of its elements, comparison by
// string formatting since Value is not comparable in general).
func setOp(op string, a, b Value) (Value, error) {
	if a.Kind != b.Kind {
		return Value{}, fmt.Errorf("set operation requires matching kinds, got %v and %v", a.Kind, b.Kind)
	}

	switch a.Kind {
	case KindMap:
		return mapSetOp(op, a.Map, b.Map)
	case KindVec:
		am := vecToSet(a.Vec)
		bm := vecToSet(b.Vec)
		result, err := mapSetOp(op, am, bm)
		if err != nil {
			return Value{}, err
		}
		return VecOf(setToVec(result.Map)), nil
	}
	return Value{}, fmt.Errorf("set operation requires Map or Vec, got %v", a.Kind)
}

func mapSetOp(op string, a, b map[string]Value) (Value, error) {
	result := make(map[string]Value)
	switch op {
	case "union":
		for k, v := range a {
			result[k] = v
		}
		for k, v := range b {
			result[k] = v
		}
	case "intersect":
		for k, v := range a {
			if _, ok := b[k]; ok {
				result[k] = v
			}
		}
	case "symdiff":
		for k, v := range a {
			if _, ok := b[k]; !ok {
				result[k] = v
			}
		}
		for k, v := range b {
			if _, ok := a[k]; !ok {
				result[k] = v
			}
		}
	case "diff":
		for k, v := range a {
			if _, ok := b[k]; !ok {
				result[k] = v
			}
		}
	default:
		return Value{}, fmt.Errorf("unsupported set operator %q", op)
	}
	return MapOf(result), nil
}

func vecToSet(vec []Value) map[string]Value {
	m := make(map[string]Value, len(vec))
	for _, v := range vec {
		m[fmt.Sprintf("%v", v)] = v
	}
	return m
}

func setToVec(m map[string]Value) []Value {
	vec := make([]Value, 0, len(m))
	for _, v := range m {
		vec = append(vec, v)
	}
	return vec
}
