package compiler

// internString dedups string constants by content into the rodata segment,
// mirroring codegen.go's stringPool/dataCache pattern, and returns the byte
// offset a PushGlobalAddr op tags as a rodata pointer.
func (c *Compiler) internString(s string) int64 {
	if off, ok := c.stringPool[s]; ok {
		return off
	}
	off := int64(len(c.rodata))
	c.rodata = append(c.rodata, []byte(s)...)
	c.stringPool[s] = off
	return off
}
