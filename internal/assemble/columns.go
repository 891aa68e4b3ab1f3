package assemble

import (
	"strings"

	"github.com/viant/sqlparser"

	"github.com/leapstack-labs/leapdash/pkg/format"
)

// projection is the inferred output of a tile query.
type projection struct {
	columns []string
	star    bool
}

// inferColumns reads the output columns of a single query statement. The
// formatter's select list reader goes first since it keeps quoted aliases and
// reads Databricks syntax; the generic parser covers what it cannot read.
// ok is false when neither can read the query.
func inferColumns(query string) (projection, bool) {
	if cols, ok := format.Columns(query); ok && (len(cols.Columns) > 0 || cols.Star) {
		return projection{columns: cols.Columns, star: cols.Star}, true
	}

	q, err := sqlparser.ParseQuery(query)
	if err != nil || q == nil {
		return projection{}, false
	}
	columns := sqlparser.NewColumns(q.List)
	if len(columns) == 0 {
		return projection{}, false
	}
	proj := projection{star: columns.IsStarExpr()}
	for _, col := range columns {
		if col == nil {
			continue
		}
		name := parsedColumnName(col.Alias, col.Name, col.Expression)
		if name == "" || name == "*" || strings.HasSuffix(name, ".*") {
			proj.star = true
			continue
		}
		proj.columns = append(proj.columns, name)
	}
	return proj, true
}

func parsedColumnName(alias, name, expression string) string {
	if alias = strings.TrimSpace(alias); alias != "" {
		return unquote(alias)
	}
	if name = strings.TrimSpace(name); name != "" {
		if i := strings.LastIndex(name, "."); i >= 0 && i+1 < len(name) && !strings.ContainsAny(name, "( ") {
			name = name[i+1:]
		}
		return unquote(name)
	}
	return strings.TrimSpace(expression)
}

func unquote(name string) string {
	if len(name) >= 2 && (name[0] == '`' || name[0] == '"') && name[len(name)-1] == name[0] {
		return name[1 : len(name)-1]
	}
	return name
}

// fieldExpression quotes a column name for use as a field expression.
func fieldExpression(column string) string {
	return "`" + strings.ReplaceAll(column, "`", "``") + "`"
}
