// Package badtype is a fixture whose export uses an unsupported type.
package badtype

//luakit:export
func Sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
