package prepare

import (
	"log/slog"

	"github.com/roach88/relq/internal/sqlstmt"
)

// Context is the preparation state of one compilation.
type Context struct {
	// Methods is the method-call transformer registry. Nil uses DefaultMethods().
	Methods *MethodRegistry

	// Logger receives debug output about wrapping decisions. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewContext returns a context with the default method registry.
func NewContext(logger *slog.Logger) *Context {
	return &Context{Methods: DefaultMethods(), Logger: logger}
}

func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Context) methods() *MethodRegistry {
	if c == nil || c.Methods == nil {
		return DefaultMethods()
	}
	return c.Methods
}

// scope maps query source names to their prepared expressions. Nested
// queries chain to the enclosing scope so correlated references resolve.
// item is the current item inside a result operator lambda.
type scope struct {
	parent  *scope
	sources map[string]sqlstmt.Expression
	item    sqlstmt.Expression
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, sources: map[string]sqlstmt.Expression{}}
}

func (s *scope) lookup(name string) (sqlstmt.Expression, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.sources[name]; ok {
			return e, true
		}
	}
	return nil, false
}

func (s *scope) currentItem() (sqlstmt.Expression, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.item != nil {
			return cur.item, true
		}
	}
	return nil, false
}

// withItem returns a child scope whose current item is item.
func (s *scope) withItem(item sqlstmt.Expression) *scope {
	child := newScope(s)
	child.item = item
	return child
}
