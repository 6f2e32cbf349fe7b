// Package compiler provides the compilation pipeline for FILLY scripts.
// It transforms source code into OpCode through three phases:
// 1. Lexer: Tokenization
// 2. Parser: AST generation
// 3. Compiler: OpCode generation
package compiler

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/zurustar/bubocore/pkg/compiler/compiler"
	"github.com/zurustar/bubocore/pkg/compiler/lexer"
	"github.com/zurustar/bubocore/pkg/compiler/parser"
	"github.com/zurustar/bubocore/pkg/opcode"
)

// CompileOptions provides configuration options for compilation.
type CompileOptions struct {
	// Debug is accepted but not consulted; the output does not change with it.
	Debug bool
}

// Compile compiles source code to OpCode.
// It chains the lexer → parser → compiler pipeline.
func Compile(source string) ([]opcode.OpCode, []error) {
	l := lexer.New(source)

	p := parser.New(l)
	program, parseErrs := p.ParseProgram()

	if len(parseErrs) > 0 {
		var compileErrors []error
		for _, err := range parseErrs {
			if pe, ok := err.(*parser.ParserError); ok {
				compileErrors = append(compileErrors, NewParserErrorWithContext(
					pe.Message, pe.Line, pe.Column, source))
			} else {
				compileErrors = append(compileErrors, err)
			}
		}
		return nil, compileErrors
	}

	c := compiler.New()
	opcodes, compileErrs := c.Compile(program)

	if len(compileErrs) > 0 {
		var compileErrors []error
		for _, err := range compileErrs {
			if ce, ok := err.(*compiler.CompilerError); ok {
				compileErrors = append(compileErrors, NewCompilerErrorWithContext(
					ce.Message, ce.Line, ce.Column, source))
			} else {
				compileErrors = append(compileErrors, err)
			}
		}
		return nil, compileErrors
	}

	return opcodes, nil
}

// CompileWithOptions compiles source code exactly as Compile does; opts does
// not change the result.
func CompileWithOptions(source string, opts CompileOptions) ([]opcode.OpCode, []error) {
	return Compile(source)
}

// ConvertShiftJISToUTF8 converts Shift-JIS encoded data to UTF-8.
// Legacy snapshot exports may carry non-UTF8 script content.
func ConvertShiftJISToUTF8(data []byte) (string, error) {
	decoder := japanese.ShiftJIS.NewDecoder()
	reader := transform.NewReader(strings.NewReader(string(data)), decoder)

	utf8Data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode Shift-JIS: %w", err)
	}

	return string(utf8Data), nil
}

// Re-export types from pkg/opcode for convenience.

type OpCode = opcode.OpCode
type OpCmd = opcode.Cmd
type Variable = opcode.Variable

const (
	OpAssign               = opcode.Assign
	OpArrayAssign          = opcode.ArrayAssign
	OpCall                 = opcode.Call
	OpBinaryOp             = opcode.BinaryOp
	OpUnaryOp              = opcode.UnaryOp
	OpArrayAccess          = opcode.ArrayAccess
	OpIf                   = opcode.If
	OpFor                  = opcode.For
	OpWhile                = opcode.While
	OpSwitch               = opcode.Switch
	OpBreak                = opcode.Break
	OpContinue             = opcode.Continue
	OpRegisterEventHandler = opcode.RegisterEventHandler
	OpWait                 = opcode.Wait
	OpSetStep              = opcode.SetStep
	OpDefineFunction       = opcode.DefineFunction
)

// Re-export error types from sub-packages for convenience.

type LexerError = lexer.LexerError
type ParserError = parser.ParserError
type CompilerErrorType = compiler.CompilerError
