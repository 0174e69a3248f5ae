// Package resolve maps a prepared statement onto storage.
//
// Resolution replaces every type- and name-based reference left by the
// preparation stage: tables get aliases and concrete names, table items
// become entities or sub-statement column references, members become columns
// or joins, entity comparisons become identity comparisons. A final pass
// (ApplyContext) makes boolean values legal where they appear.
//
// All storage knowledge comes from a MappingResolver. Each compilation owns
// its Context; nothing is shared between compilations.
package resolve

import (
	"log/slog"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/sqlstmt"
)

// MappingResolver supplies the storage mapping of entity types.
//
// Implementations must be safe for concurrent use when one resolver serves
// parallel compilations; the resolve stage only calls it, never mutates it.
type MappingResolver interface {
	// ResolveSimpleTableInfo maps an entity type onto its table, taking an
	// alias from ids.
	ResolveSimpleTableInfo(info *sqlstmt.UnresolvedTableInfo, ids *sqlstmt.UniqueIdentifierGenerator) (*sqlstmt.ResolvedSimpleTableInfo, error)

	// ResolveSimpleTableEntity returns the entity read from a resolved table.
	ResolveSimpleTableEntity(info *sqlstmt.ResolvedSimpleTableInfo) (*sqlstmt.Entity, error)

	// ResolveMember resolves a member of an entity to a Column or, for a
	// navigation to a single related entity, an EntityRefMember.
	ResolveMember(entity *sqlstmt.Entity, member string) (sqlstmt.Expression, error)

	// ResolveJoinInfo maps a navigation onto the joined table and its
	// condition, taking an alias from ids.
	ResolveJoinInfo(info *sqlstmt.UnresolvedJoinInfo, ids *sqlstmt.UniqueIdentifierGenerator) (*sqlstmt.ResolvedJoinInfo, error)

	// ResolveConstant resolves a constant of entity type to an EntityConstant.
	ResolveConstant(c *sqlstmt.Constant) (sqlstmt.Expression, error)

	// TryResolveOptimizedIdentity returns the identity of a navigated entity
	// as foreign key columns of the origin, when that avoids a join.
	TryResolveOptimizedIdentity(ref *sqlstmt.EntityRefMember) ([]sqlstmt.Expression, bool)

	// ResolveTypeCheck turns "expr is desired" into a predicate.
	ResolveTypeCheck(expr sqlstmt.Expression, desired ir.Type) (sqlstmt.Expression, error)
}

// Context is the resolution state of one compilation: the identifier
// generator, the mapping resolver, the mapping from prepared tables to
// resolved tables, and the joins created so far.
type Context struct {
	Identifiers *sqlstmt.UniqueIdentifierGenerator
	Resolver    MappingResolver
	Logger      *slog.Logger

	tables  map[*sqlstmt.Table]*sqlstmt.Table
	joined  map[string]*sqlstmt.Entity
	pending map[string][]*sqlstmt.Join
}

// NewContext returns a context with a fresh identifier generator.
func NewContext(resolver MappingResolver, logger *slog.Logger) *Context {
	return &Context{
		Identifiers: sqlstmt.NewUniqueIdentifierGenerator(),
		Resolver:    resolver,
		Logger:      logger,
	}
}

func (c *Context) init() {
	if c.Identifiers == nil {
		c.Identifiers = sqlstmt.NewUniqueIdentifierGenerator()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.tables == nil {
		c.tables = map[*sqlstmt.Table]*sqlstmt.Table{}
		c.joined = map[string]*sqlstmt.Entity{}
		c.pending = map[string][]*sqlstmt.Join{}
	}
}

// joinKey identifies a navigation: the same member navigated from the same
// alias reuses one join.
func joinKey(originAlias, member string) string {
	return originAlias + "." + member
}
