package prepare

import (
	"strings"

	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlstmt"
)

// feature is a statement feature that an incoming operator may not be
// combined with in the same SELECT.
type feature uint8

const (
	featTop feature = 1 << iota
	featDistinct
	featGroupBy
	featSetOps
	featPaging
)

var featureNames = []struct {
	f    feature
	name string
}{
	{featTop, "top"},
	{featDistinct, "distinct"},
	{featGroupBy, "group-by"},
	{featSetOps, "set-operations"},
	{featPaging, "paging"},
}

func (f feature) String() string {
	var parts []string
	for _, n := range featureNames {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

const aggregateConflicts = featTop | featDistinct | featGroupBy | featSetOps

// wrapPolicy lists, per operator, the features of the current statement that
// force it into a subquery before the operator is applied. Operators absent
// from the table never wrap. Skip wraps unconditionally in its handler.
var wrapPolicy = map[querymodel.OperatorKind]feature{
	querymodel.KindTake:      featTop | featSetOps,
	querymodel.KindDistinct:  featTop | featPaging | featSetOps,
	querymodel.KindCount:     aggregateConflicts,
	querymodel.KindLongCount: aggregateConflicts,
	querymodel.KindSum:       aggregateConflicts,
	querymodel.KindAverage:   aggregateConflicts,
	querymodel.KindMin:       aggregateConflicts,
	querymodel.KindMax:       aggregateConflicts,
	querymodel.KindFirst:     featTop | featSetOps,
	querymodel.KindSingle:    featTop | featSetOps,
	querymodel.KindLast:      featTop | featSetOps,
	querymodel.KindGroupBy:   featTop | featDistinct | featGroupBy | featSetOps,
	querymodel.KindOfType:    featTop | featSetOps,
	querymodel.KindUnion:     featTop,
	querymodel.KindConcat:    featTop,
	querymodel.KindIntersect: featTop,
	querymodel.KindExcept:    featTop,
}

// features returns the features present on b.
func features(b *sqlstmt.Builder) feature {
	var f feature
	if b.HasTop() {
		f |= featTop
	}
	if b.IsDistinctQuery {
		f |= featDistinct
	}
	if b.GroupByExpression != nil {
		f |= featGroupBy
	}
	if len(b.SetOperations) > 0 {
		f |= featSetOps
	}
	if b.HasPaging() {
		f |= featPaging
	}
	return f
}

// conflicts returns the features of b that force wrapping before kind.
func conflicts(kind querymodel.OperatorKind, b *sqlstmt.Builder) feature {
	return wrapPolicy[kind] & features(b)
}
