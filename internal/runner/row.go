package runner

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/projection"
)

// row is one scanned result row. It implements projection.RowAccessor.
type row []any

var _ projection.RowAccessor = row(nil)

// GetValue returns column index converted to typ. NULL is nil for every
// type.
func (r row) GetValue(index int, typ ir.Type) (any, error) {
	if index < 0 || index >= len(r) {
		return nil, fmt.Errorf("column %d out of range (%d columns)", index, len(r))
	}
	v, err := convert(r[index], typ)
	if err != nil {
		return nil, fmt.Errorf("column %d: %w", index, err)
	}
	return v, nil
}

// GetEntity reads columns and builds the entity. An entity whose key
// columns are all NULL is absent and reads as nil.
func (r row) GetEntity(typ ir.Type, columns []projection.ColumnRef) (any, error) {
	values := make([]any, len(columns))
	for i, c := range columns {
		v, err := r.GetValue(c.Index, c.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ.Name, c.Field, err)
		}
		values[i] = v
	}
	return projection.BuildEntity(typ, columns, values), nil
}

// convert maps a driver value onto the Go type of t. Drivers differ in what
// they return (SQLite has int64 for every integer and bool, []byte or string
// for text), so every kind accepts the common representations.
func convert(v any, t ir.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		if t.Kind == ir.KindUUID && len(b) == 16 {
			return uuid.FromBytes(b)
		}
		v = string(b)
	}
	switch t.Kind {
	case ir.KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return fmt.Sprint(v), nil

	case ir.KindInt:
		n, err := toInt64(v)
		return int(n), err

	case ir.KindInt64:
		return toInt64(v)

	case ir.KindFloat, ir.KindDecimal:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot read %q as %s", x, t)
			}
			return f, nil
		}

	case ir.KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("cannot read %q as bool", x)
			}
			return b, nil
		}

	case ir.KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.000", "2006-01-02"} {
				if ts, err := time.Parse(layout, x); err == nil {
					return ts, nil
				}
			}
			return nil, fmt.Errorf("cannot read %q as time", x)
		}

	case ir.KindUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case string:
			id, err := uuid.Parse(x)
			if err != nil {
				return nil, fmt.Errorf("cannot read %q as uuid: %w", x, err)
			}
			return id, nil
		}

	default:
		// Types without a fixed representation (null, unknown) pass through.
		return v, nil
	}
	return nil, fmt.Errorf("cannot read %T as %s", v, t)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot read %q as integer", x)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot read %T as integer", v)
}
