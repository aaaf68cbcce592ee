package dce

import "strings"

// Line classification for SDCC STM8 assembler (sdasstm8) sources. Every
// matcher strips the trailing comment first so commented code never matches.

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ";")
}

func isBlank(line string) bool {
	return len(strings.TrimSpace(line)) == 0
}

// directive returns the operand of a ".name operand" line.
func directive(line, name string) (string, bool) {
	fields := strings.Fields(stripComment(line))
	if len(fields) == 0 || fields[0] != name {
		return "", false
	}
	return strings.Join(fields[1:], " "), true
}

func areaName(line string) (string, bool) {
	operand, ok := directive(line, ".area")
	if !ok {
		return "", false
	}
	// Area options such as "(REL,CON)" follow the name.
	if i := strings.IndexAny(operand, " ("); i >= 0 {
		operand = operand[:i]
	}
	return operand, len(operand) > 0
}

func globalName(line string) (string, bool) {
	operand, ok := directive(line, ".globl")
	return operand, ok && len(operand) > 0
}

// vectorName returns the target of an "int target" vector table entry.
func vectorName(line string) (string, bool) {
	operand, ok := directive(line, "int")
	if !ok || !isSymbol(operand) {
		return "", false
	}
	return operand, true
}

// labelName returns the name of a non-local label. Local labels have the form
// nnnnn$.
func labelName(line string) (string, bool) {
	s := stripComment(line)
	if !strings.HasSuffix(s, ":") {
		return "", false
	}
	name := strings.TrimSuffix(s, ":")
	// "label::" marks a global label.
	name = strings.TrimSuffix(name, ":")
	if len(name) == 0 || strings.HasSuffix(name, "$") || !isSymbol(name) {
		return "", false
	}
	return name, true
}

func isIret(line string) bool {
	return stripComment(line) == "iret"
}

var branchMnemonics = map[string]bool{
	"call":  true,
	"callf": true,
	"callr": true,
	"jp":    true,
	"jpf":   true,
}

// callTarget returns the symbol a call or jump instruction transfers control
// to. Indirect and local targets are ignored.
func callTarget(line string) (string, bool) {
	mnemonic, operand := splitInstruction(line)
	if !branchMnemonics[mnemonic] && !strings.HasPrefix(mnemonic, "jr") {
		return "", false
	}
	if !isSymbol(operand) {
		return "", false
	}
	return operand, true
}

var dataDirectives = map[string]bool{
	".dw":    true,
	".db":    true,
	".word":  true,
	".byte":  true,
	".3byte": true,
}

func isDataDirective(line string) bool {
	mnemonic, _ := splitInstruction(line)
	return dataDirectives[mnemonic]
}

func splitInstruction(line string) (mnemonic, operand string) {
	s := stripComment(line)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// operandSymbols returns every symbol named in the operand field of an
// instruction or directive, e.g. "_tbl" for "ldw x, #(_tbl + 2)".
func operandSymbols(line string) []string {
	_, operand := splitInstruction(line)
	var symbols []string
	start := -1
	flush := func(end int) {
		if start >= 0 {
			if token := operand[start:end]; isSymbol(token) {
				symbols = append(symbols, token)
			}
			start = -1
		}
	}
	for i := 0; i < len(operand); i++ {
		if isSymbolChar(operand[i]) || operand[i] == '$' || operand[i] == '.' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(operand))
	return symbols
}

func isSymbolChar(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// isSymbol reports whether s starts with '_' or a letter and contains only
// letters, digits and '_'.
func isSymbol(s string) bool {
	if len(s) == 0 {
		return false
	}
	if c := s[0]; !(c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isSymbolChar(s[i]) {
			return false
		}
	}
	return true
}
