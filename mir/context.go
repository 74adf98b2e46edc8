package mir

import (
	"sync"
)

// Context owns every module handed to the code generator. The underlying
// generator context is not safe for concurrent module insertion, so
// adopting a finished module and linking are serialized through the
// context's mutex; creating a module and building its contents happen
// outside the lock, and only the transfer of a finished module into the
// context takes it.
type Context struct {
	mu      sync.Mutex
	modules []*Module
}

// NewContext creates an empty code-generator context.
func NewContext() *Context {
	return &Context{}
}

// NewModule creates a module owned by this context. The module is built
// locally (no lock held during construction) and enters the context's
// module list only when Finish hands it over.
func (c *Context) NewModule(name string) *Module {
	return newModule(c, name)
}

// adopt transfers a finished module into the context under the lock.
func (c *Context) adopt(m *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules = append(c.modules, m)
}
