// Command loxi runs a Lox script file, or drops into an interactive
// REPL when invoked with no arguments.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/loxlang/golox"
)

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintln(os.Stderr, "Usage: loxi [script]")
		os.Exit(64)
	}

	m := lox.NewVM()
	m.OnRuntimeError(func(e *lox.RuntimeError) {
		for _, f := range e.Trace {
			pterm.Error.Printf("[line %d] in %s\n", f.Line, f.FuncName)
		}
	})

	if len(os.Args) == 2 {
		runFile(m, os.Args[1])
		return
	}
	repl(m)
}

func runFile(m *lox.VM, path string) {
	if err := m.InterpretFile(path); err != nil {
		if _, ok := err.(*lox.RuntimeError); ok {
			os.Exit(70)
		}
		os.Exit(65)
	}
}

const (
	prompt1 = "> "
	prompt2 = ".. "
)

// repl reads balanced statements (tracking brace/paren/string depth
// across lines the same way a REPL for any brace-delimited language
// has to) and interprets each one as soon as it closes.
func repl(m *lox.VM) {
	rl, err := readline.New(prompt1)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	pterm.Info.Println("golox REPL — Ctrl+D to exit")

	var buf strings.Builder
	depthBraces, depthParens := 0, 0
	inString := false

	for {
		if buf.Len() == 0 {
			rl.SetPrompt(prompt1)
		} else {
			rl.SetPrompt(prompt2)
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		depthBraces, depthParens, inString = updateBalance(line, depthBraces, depthParens, inString)
		if depthBraces > 0 || depthParens > 0 || inString {
			continue
		}

		src := buf.String()
		buf.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}

		if err := m.Interpret(src); err != nil {
			if _, ok := err.(*lox.RuntimeError); !ok {
				pterm.Error.Println(err.Error())
			}
		}
	}
}

func updateBalance(line string, braces, parens int, inString bool) (int, int, bool) {
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		if ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			break
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			braces++
		case '}':
			if braces > 0 {
				braces--
			}
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		}
	}
	return braces, parens, inString
}
