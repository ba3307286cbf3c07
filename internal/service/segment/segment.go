package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out identifiers of the form "<scope>-<kind>-<n>".
// The counter is shared by all scopes.
type Generator struct {
	kind    string
	counter uint64
}

func New(kind string) *Generator {
	return &Generator{kind: kind}
}

func (g *Generator) Next(scope string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%s-%d", scope, g.kind, n)
}
