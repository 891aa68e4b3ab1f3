package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "select list, where and order by",
			input: "select a, b as c from t where x = 1 and y > 2 order by a desc limit 10",
			want: `SELECT
  a,
  b AS c
FROM t
WHERE
  x = 1
  AND y > 2
ORDER BY
  a DESC
LIMIT 10`,
		},
		{
			name:  "common table expression",
			input: "WITH data AS (SELECT city, count(*) AS n FROM office GROUP BY city) SELECT * FROM data",
			want: `WITH data AS (
  SELECT
    city,
    COUNT(*) AS n
  FROM office
  GROUP BY
    city
)
SELECT
  *
FROM data`,
		},
		{
			name:  "identifiers keep their case",
			input: "SELECT Address, State, Country FROM data",
			want: `SELECT
  Address,
  State,
  Country
FROM data`,
		},
		{
			name:  "comments are kept",
			input: "-- header\nselect a -- trailing\nfrom t",
			want: `-- header
SELECT
  a
  -- trailing
FROM t`,
		},
		{
			name:  "between is not split",
			input: "select * from t where d between 1 and 2 and x = 'a'",
			want: `SELECT
  *
FROM t
WHERE
  d BETWEEN 1 AND 2
  AND x = 'a'`,
		},
		{
			name:  "operators and access paths",
			input: "select a::int, -b, x[0], j:path.to, t.* from t where c >= :p",
			want: `SELECT
  a::int,
  -b,
  x[0],
  j:path.to,
  t.*
FROM t
WHERE
  c >= :p`,
		},
		{
			name:  "window function stays on one line",
			input: "select sum(x) over (partition by y order by z) as s from t",
			want: `SELECT
  SUM(x) OVER (PARTITION BY y ORDER BY z) AS s
FROM t`,
		},
		{
			name:  "joins",
			input: "select a from t1 left outer join t2 on t1.id = t2.id join t3 using (id)",
			want: `SELECT
  a
FROM t1
LEFT OUTER JOIN t2 ON t1.id = t2.id
JOIN t3 USING (id)`,
		},
		{
			name:  "union all",
			input: "select 1 union all select 2",
			want: `SELECT
  1
UNION ALL
SELECT
  2`,
		},
		{
			name:  "subquery in predicate",
			input: "select a from t where b in (select c from u)",
			want: `SELECT
  a
FROM t
WHERE
  b IN (
    SELECT
      c
    FROM u
  )`,
		},
		{
			name:  "star except is not a set operation",
			input: "select * except (secret) from t",
			want: `SELECT
  * EXCEPT (secret)
FROM t`,
		},
		{
			name:  "only the first statement is kept",
			input: " ; select 2; select 3",
			want: `SELECT
  2`,
		},
		{
			name:  "distinct stays with select",
			input: "select distinct a, b from t",
			want: `SELECT DISTINCT
  a,
  b
FROM t`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SQL(tt.input)
			require.True(t, got.Formatted, "fallback: %s", got.Reason)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestSQL_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "unbalanced parentheses", input: "SELECT COUNT(* AS invalid_column", reason: "unbalanced parentheses"},
		{name: "stray closing paren", input: "SELECT a) FROM t", reason: "unbalanced parentheses"},
		{name: "mismatched brackets", input: "SELECT x[0) FROM t", reason: "unbalanced"},
		{name: "unterminated string", input: "SELECT 'abc", reason: "unterminated string"},
		{name: "unterminated identifier", input: "SELECT `abc", reason: "unterminated quoted identifier"},
		{name: "unterminated comment", input: "SELECT 1 /* open", reason: "unterminated block comment"},
		{name: "unexpected character", input: "SELECT {{ param }}", reason: "unexpected character"},
		{name: "comments only", input: "-- nothing here", reason: "no statement"},
		{name: "empty", input: "", reason: "no statement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SQL(tt.input)
			assert.False(t, got.Formatted)
			assert.Equal(t, tt.input, got.Text)
			assert.Contains(t, got.Reason, tt.reason)
		})
	}
}

func TestSQL_Idempotent(t *testing.T) {
	inputs := []string{
		"select a, b as c from t where x = 1 and y > 2 order by a desc limit 10",
		"WITH data AS (SELECT city, count(*) AS n FROM office GROUP BY city) SELECT * FROM data",
		"-- header\nselect a, -- first\n b from t /* block */ where c = 'it''s'",
		"select case when a > 0 then 'pos' else 'neg' end as sign, - -1 from t",
		"select a from t where b in (select c from u where d = 1 or e = 2) and f like '%x%'",
		"SELECT r'\\d+' AS re, x'FF' AS bin, 1.5e3, .5, 10L FROM t",
		"select raw:items[0].price::double from events qualify row_number() over (partition by id order by ts desc) = 1",
	}

	for _, input := range inputs {
		first := SQL(input)
		require.True(t, first.Formatted, "input %q: %s", input, first.Reason)
		second := SQL(first.Text)
		require.True(t, second.Formatted, "output %q: %s", first.Text, second.Reason)
		assert.Equal(t, first.Text, second.Text, "input %q", input)
	}
}

func TestSQL_DoubleMinusIsNotAComment(t *testing.T) {
	got := SQL("select - -1")
	require.True(t, got.Formatted)
	assert.Equal(t, "SELECT\n  - -1", got.Text)
}

func TestTokenize_Literals(t *testing.T) {
	tokens, err := tokenize("SELECT 'a''b', \"q\"\"x\", `c``d`, 1.5e-3, t.col")
	require.NoError(t, err)

	var kinds []tokenKind
	var texts []string
	for _, tok := range tokens {
		kinds = append(kinds, tok.kind)
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []tokenKind{
		tokWord, tokString, tokComma, tokQuoted, tokComma, tokQuoted, tokComma,
		tokNumber, tokComma, tokWord, tokDot, tokWord,
	}, kinds)
	assert.Equal(t, []string{
		"SELECT", "'a''b'", ",", `"q""x"`, ",", "`c``d`", ",", "1.5e-3", ",", "t", ".", "col",
	}, texts)
}
