package mir

import (
	"sort"
	"strings"

	"corejit/report"
)

// Linked is the result of linking a context's modules: a single object
// image plus a symbol table. Function addresses become meaningful only
// after the host maps the image and calls SetBase with the mapping's base
// address; until then the symbol table holds image-relative offsets.
// Generation is lazy in the sense that nothing is rendered until the
// first Link call, and each module is rendered exactly once.
type Linked struct {
	text    string
	offsets map[string]uintptr
	base    uintptr
}

// Link renders every finished module in the context into one object image
// and builds its symbol table. Modules must all have been Finish()ed;
// linking an empty context is a check-failed condition.
func (c *Context) Link() (*Linked, *report.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.modules) == 0 {
		return nil, report.New(report.CheckFailed, "<mir>", 0, "link called with no modules in context")
	}

	var sb strings.Builder
	offsets := make(map[string]uintptr)

	// Render modules in name order so the image is independent of the
	// order assemblies finished compiling.
	mods := append([]*Module(nil), c.modules...)
	sort.Slice(mods, func(i, j int) bool { return mods[i].name < mods[j].name })

	for _, m := range mods {
		text := m.Text()

		for name := range m.funcs {
			// A function's image offset is where its definition begins in
			// the rendered text; stable for a fixed construction order.
			// Only "define" lines are matched, so a call site that precedes
			// the definition is not taken for it.
			pos := 0
			for _, line := range strings.SplitAfter(text, "\n") {
				if strings.HasPrefix(line, "define ") && strings.Contains(line, "@"+name+"(") {
					offsets[name] = uintptr(sb.Len() + pos)
					break
				}
				pos += len(line)
			}
		}

		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	return &Linked{text: sb.String(), offsets: offsets}, nil
}

// Object returns the linked image's bytes, ready to hand to the host's
// executable-page publisher.
func (l *Linked) Object() []byte {
	return []byte(l.text)
}

// SetBase records the address the host mapped the image at, enabling
// FuncAddr.
func (l *Linked) SetBase(base uintptr) {
	l.base = base
}

// FuncAddr resolves a defined function's address post-link. The second
// result is false for never-defined or import-only symbols.
func (l *Linked) FuncAddr(name string) (uintptr, bool) {
	off, ok := l.offsets[name]
	if !ok {
		return 0, false
	}

	return l.base + off, true
}
