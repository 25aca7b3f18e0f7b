package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// matchQuery reports whether doc satisfies the filter and search constraints
// of q. Ordering and windowing are handled separately.
func matchQuery(doc Document, q Query) bool {
	for field, want := range q.Filters {
		got, ok := doc[field]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	if q.SearchField != "" && q.SearchTerm != "" {
		val, ok := doc[q.SearchField]
		if !ok {
			return false
		}
		if !strings.Contains(strings.ToLower(fmt.Sprint(val)), strings.ToLower(q.SearchTerm)) {
			return false
		}
	}
	return true
}

// sortDocs orders docs in place by the query's sort field.
func sortDocs(docs []Document, q Query) {
	if q.OrderBy == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		less := lessValues(docs[i][q.OrderBy], docs[j][q.OrderBy])
		if q.Descending {
			return !less && !equalValues(docs[i][q.OrderBy], docs[j][q.OrderBy])
		}
		return less
	})
}

// window applies the query's offset and limit to docs.
func window(docs []Document, q Query) []Document {
	if q.Offset > 0 {
		if q.Offset >= len(docs) {
			return nil
		}
		docs = docs[q.Offset:]
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// equalValues compares two field values, treating all numeric types as
// equivalent. JSON decoding turns numbers into float64, while caller-supplied
// documents may carry int values for the same field.
func equalValues(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func lessValues(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// mergeFields copies fields into doc, overwriting existing keys.
func mergeFields(doc, fields Document) Document {
	merged := make(Document, len(doc)+len(fields))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}
