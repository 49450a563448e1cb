// Package query implements the keyword:value search mini-language shared by
// every list endpoint. Parsing is pure and never fails: recognized keywords
// become filters, everything else is collected into a residual free-text
// phrase. When a keyword repeats, the last occurrence wins.
package query

import (
	"strings"
	"unicode"
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

type LoanStatus int

const (
	LoanAny LoanStatus = iota
	LoanActive
	LoanReturned
)

type FineStatus int

const (
	FineAny FineStatus = iota
	FineOwed
	FinePaid
)

type DueStatus int

const (
	DueAny DueStatus = iota
	DuePast
	DueFuture
)

// keywordAliases maps each canonical keyword to its accepted spellings.
// Resolved once at init into aliasIndex.
var keywordAliases = map[string][]string{
	"borrower":  {"user"},
	"card":      {},
	"phone":     {},
	"isbn":      {},
	"title":     {},
	"author":    {},
	"loan_id":   {},
	"loan_is":   {"loan_status", "loan"},
	"fine_is":   {"fine_status", "fine"},
	"due":       {"due_status"},
	"available": {"availability"},
	"sort":      {"sort_by"},
	"order":     {"order_by", "order_direction"},
	"limit":     {"max", "count"},
	"page":      {"page_num"},
}

var aliasIndex = func() map[string]string {
	idx := make(map[string]string)
	for canonical, aliases := range keywordAliases {
		idx[canonical] = canonical
		for _, alias := range aliases {
			idx[alias] = canonical
		}
	}
	return idx
}()

var loanStatusValues = map[string]LoanStatus{
	"active":   LoanActive,
	"returned": LoanReturned,
	"in":       LoanReturned,
}

var fineStatusValues = map[string]FineStatus{
	"owed": FineOwed,
	"paid": FinePaid,
}

var dueStatusValues = map[string]DueStatus{
	"past":   DuePast,
	"future": DueFuture,
}

var availableValues = map[string]bool{
	"true":        true,
	"yes":         true,
	"available":   true,
	"false":       false,
	"no":          false,
	"unavailable": false,
	"checked_out": false,
}

// Query is an ordered set of keyword filters plus the residual phrase.
// Filters for keywords a given search does not recognize are simply ignored
// by that search.
type Query struct {
	Raw     string
	AnyTerm string

	keys    []string
	filters map[string]string
}

// Parse converts a free-text query string into a Query. It cannot fail;
// malformed input degrades into residual text.
func Parse(raw string) *Query {
	q := &Query{
		Raw:     raw,
		filters: make(map[string]string),
	}

	var residual []string
	for _, token := range tokenize(raw) {
		key, value, ok := splitToken(token)
		if !ok {
			residual = append(residual, unquote(token))
			continue
		}
		q.set(key, value)
	}
	q.AnyTerm = strings.Join(residual, " ")
	return q
}

// tokenize splits on whitespace except inside double quotes. Quotes are kept
// in the token so splitToken can tell a quoted value from a bare one.
func tokenize(raw string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false

	for _, r := range raw {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case unicode.IsSpace(r) && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// splitToken returns the canonical keyword and unquoted value of a
// keyword:value token, or ok=false when the token is residual text.
func splitToken(token string) (key, value string, ok bool) {
	i := strings.Index(token, ":")
	if i <= 0 {
		return "", "", false
	}
	key = strings.ToLower(token[:i])
	// A quoted string is never a keyword.
	if strings.ContainsAny(key, `" `) {
		return "", "", false
	}
	return key, unquote(token[i+1:]), true
}

func unquote(s string) string {
	if len(s) > 1 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// set records a filter under its canonical keyword, overwriting any earlier
// occurrence (last-write-wins) while keeping the original keyword order.
func (q *Query) set(key, value string) {
	canonical, known := aliasIndex[key]
	if !known {
		canonical = key
	}
	if _, seen := q.filters[canonical]; !seen {
		q.keys = append(q.keys, canonical)
	}
	q.filters[canonical] = value
}

// Get returns the raw value of a canonical keyword.
func (q *Query) Get(key string) (string, bool) {
	v, ok := q.filters[key]
	return v, ok
}

func (q *Query) get(key string) string {
	return q.filters[key]
}

func (q *Query) Borrower() string { return q.get("borrower") }
func (q *Query) Card() string     { return q.get("card") }
func (q *Query) Phone() string    { return q.get("phone") }
func (q *Query) ISBN() string     { return q.get("isbn") }
func (q *Query) Title() string    { return q.get("title") }
func (q *Query) Author() string   { return q.get("author") }
func (q *Query) LoanID() string   { return q.get("loan_id") }
func (q *Query) Sort() string     { return strings.ToLower(q.get("sort")) }

// Order defaults to ascending, matching the original behavior for absent or
// unrecognized values.
func (q *Query) Order() Direction {
	switch strings.ToLower(q.get("order")) {
	case "desc", "descending":
		return Descending
	default:
		return Ascending
	}
}

func (q *Query) LoanIs() LoanStatus {
	return loanStatusValues[strings.ToLower(q.get("loan_is"))]
}

func (q *Query) FineIs() FineStatus {
	return fineStatusValues[strings.ToLower(q.get("fine_is"))]
}

func (q *Query) Due() DueStatus {
	return dueStatusValues[strings.ToLower(q.get("due"))]
}

// Available returns the parsed availability filter; ok is false when the
// filter is absent or its value is not in the accepted vocabulary.
func (q *Query) Available() (available bool, ok bool) {
	v, present := q.filters["available"]
	if !present {
		return false, false
	}
	available, ok = availableValues[strings.ToLower(v)]
	return available, ok
}

// Serialize renders the filters back into query-string form, residual phrase
// last. The output reparses to the same filter set, though keyword order may
// differ from the raw input.
func (q *Query) Serialize() string {
	var sb strings.Builder
	for _, key := range q.keys {
		sb.WriteString(FormatToken(key, q.filters[key]))
		sb.WriteByte(' ')
	}
	sb.WriteString(q.AnyTerm)
	return strings.TrimSpace(sb.String())
}

// FormatToken renders a single keyword:value token, quoting the value when it
// contains whitespace.
func FormatToken(key, value string) string {
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return key + `:"` + value + `"`
	}
	return key + ":" + value
}

// Merge implements the filter-toggle composition used by clients: the new
// token is prepended and any previous occurrence of the same canonical
// keyword is dropped, leaving other filters and the residual phrase intact.
func Merge(raw, key, value string) string {
	q := Parse(raw)
	canonical, known := aliasIndex[strings.ToLower(key)]
	if !known {
		canonical = strings.ToLower(key)
	}
	q.Delete(canonical)
	merged := FormatToken(canonical, value) + " " + q.Serialize()
	return strings.TrimSpace(merged)
}

// Delete removes a canonical keyword from the filter set.
func (q *Query) Delete(key string) {
	if _, ok := q.filters[key]; !ok {
		return
	}
	delete(q.filters, key)
	for i, k := range q.keys {
		if k == key {
			q.keys = append(q.keys[:i], q.keys[i+1:]...)
			break
		}
	}
}

// Filters returns the canonical keyword set, in first-seen order.
func (q *Query) Filters() map[string]string {
	out := make(map[string]string, len(q.filters))
	for k, v := range q.filters {
		out[k] = v
	}
	return out
}
