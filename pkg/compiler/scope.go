package compiler

// pushScope and popScope mirror checker.go's scope stack exactly, in lockstep
// with every checkBlock/checkFunction/for-in call site, so a name resolves to
// the same declaration the checker already validated it against.
func (c *Compiler) pushScope() { c.scopes = append(c.scopes, map[string]int64{}) }
func (c *Compiler) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Compiler) declareLocal(name string, offset int64) {
	c.scopes[len(c.scopes)-1][name] = offset
}

func (c *Compiler) lookupLocal(name string) (int64, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if off, ok := c.scopes[i][name]; ok {
			return off, true
		}
	}
	return 0, false
}

// newTemp reserves size bytes in the current function's frame for a
// compiler-private value with no source name: the for-in desugaring's
// index/base-pointer/length/element slots. Allocated past whatever the
// checker's own FrameSize already accounts for.
func (c *Compiler) newTemp(size int64) int64 {
	off := c.nextLocal
	c.nextLocal += size
	return off
}
