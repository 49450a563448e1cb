package util

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"

	"modernc.org/sqlite"
)

// Concatenate is a sqlite aggregate joining string values in row order,
// used to collect author names per book in search queries.
type Concatenate struct {
	values []string
	sep    string
}

func NewConcatenate(sep string) *Concatenate {
	return &Concatenate{sep: sep}
}

func (c *Concatenate) Step(ctx *sqlite.FunctionContext, rowArgs []driver.Value) error {
	switch v := rowArgs[0].(type) {
	case string:
		if v != "" {
			c.values = append(c.values, v)
		}
	case nil:
		// NULL from a left join with no author rows.
	default:
		return fmt.Errorf("concat: invalid type %T", rowArgs[0])
	}
	return nil
}

func (c *Concatenate) WindowValue(ctx *sqlite.FunctionContext) (driver.Value, error) {
	return strings.Join(c.values, c.sep), nil
}

func (c *Concatenate) WindowInverse(ctx *sqlite.FunctionContext, args []driver.Value) error {
	return nil
}

func (c *Concatenate) Final(ctx *sqlite.FunctionContext) {
}

// SortedConcatenate joins string values in lexicographic order, giving a
// deterministic author listing independent of join order.
type SortedConcatenate struct {
	values []string
	sep    string
}

func NewSortedConcatenate(sep string) *SortedConcatenate {
	return &SortedConcatenate{sep: sep}
}

func (sc *SortedConcatenate) Step(ctx *sqlite.FunctionContext, rowArgs []driver.Value) error {
	switch v := rowArgs[0].(type) {
	case string:
		if v != "" {
			sc.values = append(sc.values, v)
		}
	case nil:
	default:
		return fmt.Errorf("sortconcat: invalid type %T", rowArgs[0])
	}
	return nil
}

func (sc *SortedConcatenate) WindowValue(ctx *sqlite.FunctionContext) (driver.Value, error) {
	slices.Sort(sc.values)
	return strings.Join(sc.values, sc.sep), nil
}

func (sc *SortedConcatenate) WindowInverse(ctx *sqlite.FunctionContext, args []driver.Value) error {
	return nil
}

func (sc *SortedConcatenate) Final(ctx *sqlite.FunctionContext) {
}
