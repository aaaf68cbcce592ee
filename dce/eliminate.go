package dce

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

const DefaultEntry = "_main"

// emptyVector replaces the vector entries of removed handlers. Entries are
// zeroed rather than dropped so remaining handlers keep their slots.
const emptyVector = "int 0x000000"

type Options struct {
	// Entry is the label of the program entry function.
	Entry string
	// Exclude names functions to keep regardless of whether they are used.
	Exclude []string
	// OptIRQ removes interrupt handlers with empty bodies along with their
	// iret.
	OptIRQ bool
}

type Result struct {
	// Entry is the resolved entry function.
	Entry   *Function
	Kept    []*Function
	Removed []*Function
	Total   int
}

func (r *Result) Summary() string {
	return fmt.Sprintf("Detected and removed %d unused functions from a total of %d functions", len(r.Removed), r.Total)
}

// Eliminate determines the functions reachable from the entry point, the
// interrupt handlers, the excluded names and the data tables, and comments
// out everything else in the in-memory file contents.
func (p *Program) Eliminate(opts Options) (*Result, error) {
	if len(opts.Entry) == 0 {
		opts.Entry = DefaultEntry
	}

	entry := p.Lookup(opts.Entry, "")
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, opts.Entry)
	}

	roots := []*Function{entry}
	for _, fn := range p.Functions {
		if !fn.ISR {
			continue
		}
		if opts.OptIRQ && fn.Empty {
			glog.V(1).Infof("dropping empty IRQ handler %s", fn.Name)
			continue
		}
		roots = append(roots, fn)
	}
	for _, name := range opts.Exclude {
		found := false
		for _, fn := range p.Functions {
			if fn.Name == name {
				roots = append(roots, fn)
				found = true
			}
		}
		if !found {
			glog.Warningf("excluded function %s not found", name)
		}
	}
	for _, file := range p.Files {
		for _, name := range file.DataRefs {
			if fn := p.Lookup(name, file.Path); fn != nil {
				roots = append(roots, fn)
			}
		}
	}

	keep := p.reachable(roots)

	result := &Result{Entry: entry, Total: len(p.Functions)}
	keptNames := map[string]bool{}
	for id, fn := range p.Functions {
		if keep[int64(id)] {
			result.Kept = append(result.Kept, fn)
			keptNames[fn.Name] = true
		} else {
			result.Removed = append(result.Removed, fn)
		}
	}

	if glog.V(1) {
		glog.Info("keeping functions:")
		for _, fn := range result.Kept {
			var callees []string
			for _, callee := range p.Callees(fn) {
				callees = append(callees, callee.Name)
			}
			if len(callees) > 0 {
				glog.Infof("\t%s -> %s", fn.Name, strings.Join(callees, ", "))
			} else {
				glog.Infof("\t%s", fn.Name)
			}
		}
		glog.Info("removing functions:")
		for _, fn := range result.Removed {
			glog.Infof("\t%s (%s)", fn.Name, fn.Path)
		}
	}

	// A global is dead when every function of that name was removed.
	dead := map[string]bool{}
	for _, fn := range result.Removed {
		if !keptNames[fn.Name] {
			dead[fn.Name] = true
		}
	}

	for _, fn := range result.Removed {
		file := p.file(fn.Path)
		for line := fn.Start; line <= fn.End; line++ {
			file.commentOut(line)
		}
		for _, v := range fn.Vectors {
			p.file(v.Path).clearVector(v.Line)
		}
	}
	for _, file := range p.Files {
		for _, g := range file.Globals {
			if dead[g.Name] {
				file.commentOut(g.Line)
			}
		}
	}

	return result, nil
}

func (p *Program) file(path string) *File {
	for _, file := range p.Files {
		if file.Path == path {
			return file
		}
	}
	panic("dce: unknown file " + path)
}

func (file *File) commentOut(line int) {
	if s := file.Lines[line-1]; !strings.HasPrefix(s, ";") {
		file.Lines[line-1] = ";" + s
	}
}

func (file *File) clearVector(line int) {
	s := file.Lines[line-1]
	ending := ""
	if strings.HasSuffix(s, "\n") {
		ending = "\n"
		if strings.HasSuffix(s, "\r\n") {
			ending = "\r\n"
		}
	}
	comment := ""
	if i := strings.IndexByte(s, ';'); i >= 0 {
		comment = " " + strings.TrimRight(s[i:], "\r\n")
	}
	file.Lines[line-1] = "\t" + emptyVector + comment + ending
}

// Bytes returns the current file contents.
func (file *File) Bytes() []byte {
	return []byte(strings.Join(file.Lines, ""))
}
