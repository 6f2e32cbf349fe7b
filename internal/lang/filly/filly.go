// Package filly adapts the FILLY compiler pipeline (lexer, parser, and
// opcode generator) into a Language Center plugin (§4.D). Compile reuses
// the existing pipeline unchanged; Evaluate is a new, scoped-down
// tree-walking interpreter over the resulting opcode.OpCode sequence.
//
// FILLY is not reimplemented as a complete language here: user-defined
// functions, event handlers, switch statements, and array element access
// compile successfully (the underlying pipeline accepts them) but are
// no-ops at evaluation time. Only the subset needed to emit device events
// from frame scripts — assignment, arithmetic, control flow, and calls to
// a fixed builtin set (note/cc/osc/log) — is evaluated.
package filly

import (
	"fmt"
	"strings"

	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scene"
	pkgcompiler "github.com/zurustar/bubocore/pkg/compiler"
	"github.com/zurustar/bubocore/pkg/opcode"
)

const Name = "filly"

// Language implements lang.Language over the existing FILLY pipeline.
type Language struct{}

func New() *Language { return &Language{} }

func (l *Language) Name() string { return Name }

// Program wraps the compiled opcode sequence. It is opaque outside this
// package, per the Language Center's contract.
type Program struct {
	ops []opcode.OpCode
}

func (p *Program) Language() string { return Name }

// Compile runs the existing lexer/parser/opcode pipeline and adapts its
// line/column CompileError into the character-offset CompilationError the
// Language Center expects.
func (l *Language) Compile(source string, ctx lang.CompileContext) (lang.Program, *lang.CompilationError) {
	ops, errs := pkgcompiler.Compile(source)
	if len(errs) > 0 {
		return nil, toCompilationError(errs[0], source)
	}
	return &Program{ops: ops}, nil
}

func toCompilationError(err error, source string) *lang.CompilationError {
	if ce, ok := err.(*pkgcompiler.CompileError); ok {
		from := offsetForLineCol(source, ce.Line, ce.Column)
		return &lang.CompilationError{
			From: from,
			To:   from + 1,
			Lang: Name,
			Info: fmt.Sprintf("%s: %s", ce.Phase, ce.Message),
		}
	}
	return &lang.CompilationError{Lang: Name, Info: err.Error()}
}

// offsetForLineCol converts a 1-indexed (line, column) pair into a 0-indexed
// byte offset into source. Out-of-range inputs clamp to the nearest valid
// offset rather than erroring, since this only feeds diagnostics.
func offsetForLineCol(source string, line, col int) int {
	if line < 1 {
		line = 1
	}
	lines := strings.Split(source, "\n")
	offset := 0
	for i := 0; i < line-1 && i < len(lines); i++ {
		offset += len(lines[i]) + 1
	}
	if col > 0 {
		offset += col - 1
	}
	if offset > len(source) {
		offset = len(source)
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}
