package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeywordsAndResidual(t *testing.T) {
	q := Parse(`odyssey sort:title order:desc available:true homer`)

	assert.Equal(t, "odyssey homer", q.AnyTerm)
	assert.Equal(t, "title", q.Sort())
	assert.Equal(t, Descending, q.Order())

	available, ok := q.Available()
	require.True(t, ok)
	assert.True(t, available)
}

func TestParseQuotedValue(t *testing.T) {
	q := Parse(`title:"the odyssey" author:Homer`)

	assert.Equal(t, "the odyssey", q.Title())
	assert.Equal(t, "Homer", q.Author())
	assert.Empty(t, q.AnyTerm)
}

func TestParseQuotedResidual(t *testing.T) {
	q := Parse(`"war and peace" loan_is:active`)

	assert.Equal(t, "war and peace", q.AnyTerm)
	assert.Equal(t, LoanActive, q.LoanIs())
}

func TestLastOccurrenceWins(t *testing.T) {
	q := Parse(`sort:title sort:isbn order:asc order:desc`)

	assert.Equal(t, "isbn", q.Sort())
	assert.Equal(t, Descending, q.Order())
}

func TestAliasesResolveToCanonicalKeyword(t *testing.T) {
	q := Parse(`user:smith loan_status:returned fine:owed availability:no sort_by:title`)

	assert.Equal(t, "smith", q.Borrower())
	assert.Equal(t, LoanReturned, q.LoanIs())
	assert.Equal(t, FineOwed, q.FineIs())
	assert.Equal(t, "title", q.Sort())

	available, ok := q.Available()
	require.True(t, ok)
	assert.False(t, available)
}

func TestUnknownKeywordsAreKeptNotFatal(t *testing.T) {
	q := Parse(`shelf:3b title:dune`)

	v, ok := q.Get("shelf")
	require.True(t, ok)
	assert.Equal(t, "3b", v)
	assert.Equal(t, "dune", q.Title())
}

func TestEnumValuesCaseInsensitive(t *testing.T) {
	q := Parse(`loan_is:ACTIVE fine_is:Paid due:PAST order:DESC`)

	assert.Equal(t, LoanActive, q.LoanIs())
	assert.Equal(t, FinePaid, q.FineIs())
	assert.Equal(t, DuePast, q.Due())
	assert.Equal(t, Descending, q.Order())
}

func TestUnrecognizedEnumValueMeansNoFilter(t *testing.T) {
	q := Parse(`loan_is:maybe available:dunno`)

	assert.Equal(t, LoanAny, q.LoanIs())
	_, ok := q.Available()
	assert.False(t, ok)
}

func TestSerializeQuotesWhitespaceValues(t *testing.T) {
	q := Parse(`title:"a farewell to arms" card:ID000001`)

	s := q.Serialize()
	assert.Contains(t, s, `title:"a farewell to arms"`)
	assert.Contains(t, s, "card:ID000001")
}

func TestRoundTripIsStable(t *testing.T) {
	inputs := []string{
		`odyssey sort:title order:desc`,
		`title:"the odyssey" author:Homer free text`,
		`loan_is:active due:past fine_is:owed card:ID000042`,
		`user:smith user:jones`,
		`plain residual only`,
		``,
	}

	for _, raw := range inputs {
		first := Parse(raw)
		second := Parse(first.Serialize())

		assert.Equal(t, first.Filters(), second.Filters(), "filters differ for %q", raw)
		assert.Equal(t, first.AnyTerm, second.AnyTerm, "residual differs for %q", raw)

		// One more trip must be a fixpoint.
		third := Parse(second.Serialize())
		assert.Equal(t, second.Filters(), third.Filters())
		assert.Equal(t, second.Serialize(), third.Serialize())
	}
}

func TestMergePrependsAndSupersedes(t *testing.T) {
	raw := `dune sort:title available:true`

	merged := Merge(raw, "available", "false")
	q := Parse(merged)

	available, ok := q.Available()
	require.True(t, ok)
	assert.False(t, available)
	assert.Equal(t, "title", q.Sort())
	assert.Equal(t, "dune", q.AnyTerm)
	assert.True(t, len(merged) > 0 && merged[len(merged)-1] != ' ')
}

func TestMergeResolvesAliasConflicts(t *testing.T) {
	merged := Merge(`user:smith`, "borrower", "jones")
	q := Parse(merged)

	assert.Equal(t, "jones", q.Borrower())
}
