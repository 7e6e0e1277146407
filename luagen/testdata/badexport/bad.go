// Package badexport is a fixture with an export the generator rejects.
package badexport

// Counter counts.
type Counter struct{ n int }

// Inc is a method, so it cannot be exported.
//
//luakit:export
func (c *Counter) Inc() int {
	c.n++
	return c.n
}
