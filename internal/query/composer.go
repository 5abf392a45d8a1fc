package query

import (
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/schema"
)

// Relation values for combining metadata equality filters.
const (
	RelationAnd = "AND"
	RelationOr  = "OR"
)

type joinSpec struct {
	clause string
	args   []interface{}
	left   bool
}

// Composer assembles the listing query for one record kind. Joins are
// tracked by alias and added at most once; any join that can fan out a
// record into multiple rows marks the result set distinct.
type Composer struct {
	kind models.RecordKind

	joinOrder []string
	joins     map[string]joinSpec

	metaPredicates []sq.Sqlizer
	metaCount      int
	relation       string

	filters  []sq.Sqlizer
	search   sq.Sqlizer
	distinct bool
}

// NewComposer starts a query scoped to records of the given kind.
func NewComposer(kind models.RecordKind) *Composer {
	return &Composer{
		kind:  kind,
		joins: make(map[string]joinSpec),
	}
}

func (c *Composer) addJoin(alias, clause string, left bool, args ...interface{}) {
	if _, ok := c.joins[alias]; ok {
		return
	}
	c.joins[alias] = joinSpec{clause: clause, args: args, left: left}
	c.joinOrder = append(c.joinOrder, alias)
}

// Relation fixes the combination rule for metadata equality filters.
// A rule set explicitly by the caller is preserved; later calls do not
// overwrite it.
func (c *Composer) Relation(rel string) *Composer {
	if c.relation != "" {
		return c
	}
	if rel == RelationAnd || rel == RelationOr {
		c.relation = rel
	}
	return c
}

// FilterTerm restricts results to records linked to the given term.
func (c *Composer) FilterTerm(termID int64) *Composer {
	if termID <= 0 {
		return c
	}
	c.addJoin("ft", "record_terms AS ft ON ft.record_id = records.id", false)
	c.filters = append(c.filters, sq.Eq{"ft.term_id": termID})
	c.distinct = true
	return c
}

// FilterMetaEquals adds a metadata equality filter. Multiple filters
// combine with AND unless an explicit relation was set.
func (c *Composer) FilterMetaEquals(key, value string) *Composer {
	if key == "" || value == "" {
		return c
	}
	c.metaCount++
	alias := fmt.Sprintf("mf%d", c.metaCount)
	c.addJoin(alias,
		fmt.Sprintf("record_meta AS %s ON %s.record_id = records.id AND %s.meta_key = ?", alias, alias, alias),
		false, key)
	c.metaPredicates = append(c.metaPredicates, sq.Eq{alias + ".meta_value": value})
	c.distinct = true
	return c
}

// Search fans a free-text term out across every searchable metadata
// field, pre-resolved user IDs, pre-resolved term IDs, and the record
// title, combined with OR. Resolution of the user and term candidate
// sets happens before composition so rows match by reference equality.
func (c *Composer) Search(term string, userIDs, termIDs []int64) *Composer {
	if term == "" {
		return c
	}
	pattern := "%" + term + "%"

	c.addJoin("sm", "record_meta AS sm ON sm.record_id = records.id", true)
	c.addJoin("str", "record_terms AS str ON str.record_id = records.id", true)
	c.addJoin("st", "terms AS st ON st.id = str.term_id", true)

	or := sq.Or{}
	for _, key := range schema.SearchableMetaKeys(c.kind) {
		or = append(or, sq.And{
			sq.Eq{"sm.meta_key": key},
			sq.Like{"sm.meta_value": pattern},
		})
	}

	if len(userIDs) > 0 {
		values := make([]string, len(userIDs))
		for i, id := range userIDs {
			values[i] = strconv.FormatInt(id, 10)
		}
		for _, key := range schema.UserReferenceKeys(c.kind) {
			or = append(or, sq.And{
				sq.Eq{"sm.meta_key": key},
				sq.Eq{"sm.meta_value": values},
			})
		}
	}

	if len(termIDs) > 0 {
		or = append(or, sq.Eq{"str.term_id": termIDs})
	}

	or = append(or, sq.Like{"records.title": pattern})

	c.search = or
	c.distinct = true
	return c
}

// Joins returns the aliases of every join added so far, in order.
func (c *Composer) Joins() []string {
	out := make([]string, len(c.joinOrder))
	copy(out, c.joinOrder)
	return out
}

// Distinct reports whether a fan-out join forced deduplication.
func (c *Composer) Distinct() bool {
	return c.distinct
}

// Build renders the composed query as a squirrel select over records,
// scoped to the composer's kind.
func (c *Composer) Build() sq.SelectBuilder {
	b := c.build(sq.Select("records.id", "records.kind", "records.title", "records.created_at", "records.updated_at"))
	if c.distinct {
		b = b.Distinct()
	}
	return b
}

// BuildCount renders the matching-row count variant of the query.
func (c *Composer) BuildCount() sq.SelectBuilder {
	return c.build(sq.Select("COUNT(DISTINCT records.id)"))
}

func (c *Composer) build(b sq.SelectBuilder) sq.SelectBuilder {
	b = b.From("records").
		PlaceholderFormat(sq.Dollar).
		Where(sq.Eq{"records.kind": string(c.kind)})

	for _, alias := range c.joinOrder {
		js := c.joins[alias]
		if js.left {
			b = b.LeftJoin(js.clause, js.args...)
		} else {
			b = b.Join(js.clause, js.args...)
		}
	}

	if len(c.metaPredicates) > 0 {
		if c.relation == RelationOr {
			b = b.Where(sq.Or(c.metaPredicates))
		} else {
			b = b.Where(sq.And(c.metaPredicates))
		}
	}
	for _, f := range c.filters {
		b = b.Where(f)
	}
	if c.search != nil {
		b = b.Where(c.search)
	}
	return b
}
