package dce

import (
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

// Global is a ".globl" declaration. SDCC emits one for every symbol a module
// defines or imports.
type Global struct {
	Path string
	Name string
	Line int
}

// Interrupt is an "int" entry of the interrupt vector table.
type Interrupt struct {
	Path string
	Name string
	Line int
}

// Function is a routine in the CODE area. Start and End are the 1-based line
// numbers of its label and of its last line.
type Function struct {
	Path  string
	Name  string
	Start int
	End   int

	// Calls lists call and jump targets in order of appearance.
	Calls []string
	// Refs lists other symbols named in operands, e.g. "ldw x, #_handler".
	Refs []string

	// Vectors are the vector table entries naming this function.
	Vectors []*Interrupt

	ISR   bool
	Empty bool

	// Static is set when the defining file carries no ".globl" for the name.
	Static bool
}

func (f *Function) String() string {
	return f.Name
}

// File is a parsed assembly file. Lines hold the original text, including
// line terminators, so that the file can be rewritten byte for byte.
type File struct {
	Path  string
	Lines []string

	Globals    []*Global
	Interrupts []*Interrupt
	Functions  []*Function

	// DataRefs are symbols referenced from data directives outside the CODE
	// area, e.g. function pointer tables in CONST.
	DataRefs []string
}

func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}

func Parse(path string, r io.Reader) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	file := &File{Path: path}
	if len(b) > 0 {
		file.Lines = strings.SplitAfter(string(b), "\n")
		if last := len(file.Lines) - 1; file.Lines[last] == "" {
			file.Lines = file.Lines[:last]
		}
	}

	var (
		inCode  bool
		current *Function
	)

	closeFunction := func(lastLine int) {
		if current == nil {
			return
		}
		current.End = lastLine
		if glog.V(2) {
			if current.Empty {
				glog.Infof("%s:%d: function %s is empty", path, lastLine, current.Name)
			}
			glog.Infof("%s:%d: function %s ends here", path, lastLine, current.Name)
		}
		file.Functions = append(file.Functions, current)
		current = nil
	}

	for i, line := range file.Lines {
		lineNo := i + 1

		if area, ok := areaName(line); ok {
			closeFunction(lineNo - 1)
			inCode = area == "CODE"
			if inCode && bool(glog.V(2)) {
				glog.Infof("%s:%d: code section starts here", path, lineNo)
			}
			continue
		}

		if !inCode {
			file.parseData(line, lineNo)
			continue
		}

		if isComment(line) || isBlank(line) {
			continue
		}

		if name, ok := labelName(line); ok {
			closeFunction(lineNo - 1)
			current = &Function{
				Path:  path,
				Name:  name,
				Start: lineNo,
				Empty: true,
			}
			if glog.V(2) {
				glog.Infof("%s:%d: function %s starts here", path, lineNo, name)
			}
			continue
		}

		if current == nil {
			continue
		}

		if isIret(line) {
			if glog.V(2) {
				glog.Infof("%s:%d: function %s detected as IRQ handler", path, lineNo, current.Name)
			}
			current.ISR = true
			continue
		}

		current.Empty = false

		if target, ok := callTarget(line); ok {
			if !slices.Contains(current.Calls, target) {
				if glog.V(2) {
					glog.Infof("%s:%d: call to %s", path, lineNo, target)
				}
				current.Calls = append(current.Calls, target)
			}
			continue
		}

		for _, symbol := range operandSymbols(line) {
			if !slices.Contains(current.Refs, symbol) {
				current.Refs = append(current.Refs, symbol)
			}
		}
	}
	closeFunction(len(file.Lines))

	// Trailing comments and blank lines are the banner of the next function.
	for _, fn := range file.Functions {
		for fn.End > fn.Start && (isComment(file.Lines[fn.End-1]) || isBlank(file.Lines[fn.End-1])) {
			fn.End--
		}
	}

	file.markStatic()
	return file, nil
}

func (file *File) parseData(line string, lineNo int) {
	if name, ok := globalName(line); ok {
		file.Globals = append(file.Globals, &Global{Path: file.Path, Name: name, Line: lineNo})
		if glog.V(2) {
			glog.Infof("%s:%d: global definition %s", file.Path, lineNo, name)
		}
		return
	}

	if name, ok := vectorName(line); ok {
		file.Interrupts = append(file.Interrupts, &Interrupt{Path: file.Path, Name: name, Line: lineNo})
		if glog.V(2) {
			glog.Infof("%s:%d: interrupt definition %s", file.Path, lineNo, name)
		}
		return
	}

	if isDataDirective(line) {
		for _, symbol := range operandSymbols(line) {
			if !slices.Contains(file.DataRefs, symbol) {
				file.DataRefs = append(file.DataRefs, symbol)
			}
		}
	}
}

// markStatic flags functions that the file does not export.
func (file *File) markStatic() {
	exported := map[string]bool{}
	for _, g := range file.Globals {
		exported[g.Name] = true
	}
	for _, fn := range file.Functions {
		fn.Static = !exported[fn.Name]
	}
}
