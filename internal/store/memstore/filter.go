package memstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// scan applies CommonFilter semantics to rows keyed by their json field names,
// which match the column names used by the SQL store.
func scan[T any](rows []T, req *store.ScanRequest) ([]T, int64, error) {
	if req == nil {
		req = &store.ScanRequest{}
	}
	req.Normalize()

	type entry struct {
		row    T
		fields map[string]any
	}
	var matched []entry
	for _, r := range rows {
		fields, err := toFields(r)
		if err != nil {
			return nil, 0, err
		}
		ok := true
		for _, f := range req.Filters {
			if !match(fields, f) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, entry{row: r, fields: fields})
		}
	}

	sortBy, desc := req.SortBy, req.SortOrder != "asc"
	if sortBy == "" {
		sortBy, desc = "created_at", true
	}
	sort.SliceStable(matched, func(i, j int) bool {
		c := compare(matched[i].fields[sortBy], matched[j].fields[sortBy])
		if c == 0 {
			c = compare(matched[i].fields["id"], matched[j].fields["id"])
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	total := int64(len(matched))
	if req.From >= len(matched) {
		return nil, total, nil
	}
	end := req.From + req.Size
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]T, 0, end-req.From)
	for _, e := range matched[req.From:end] {
		out = append(out, e.row)
	}
	return out, total, nil
}

func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return out, nil
}

func match(fields map[string]any, f *types.CommonFilter) bool {
	if f == nil || len(f.Values) == 0 {
		return true
	}
	v := fields[f.Field]
	switch f.Operator {
	case types.CommonFilterOperatorEq:
		return compare(v, f.Values[0]) == 0
	case types.CommonFilterOperatorNotEq:
		return compare(v, f.Values[0]) != 0
	case types.CommonFilterOperatorLt:
		return v != nil && compare(v, f.Values[0]) < 0
	case types.CommonFilterOperatorLte:
		return v != nil && compare(v, f.Values[0]) <= 0
	case types.CommonFilterOperatorGt:
		return v != nil && compare(v, f.Values[0]) > 0
	case types.CommonFilterOperatorGte:
		return v != nil && compare(v, f.Values[0]) >= 0
	case types.CommonFilterOperatorRange, types.CommonFilterOperatorDateRange:
		if len(f.Values) < 2 {
			return true
		}
		return v != nil && compare(v, f.Values[0]) >= 0 && compare(v, f.Values[1]) <= 0
	case types.CommonFilterOperatorIn:
		for _, want := range f.Values {
			if compare(v, want) == 0 {
				return true
			}
		}
		return false
	}
	return true
}

// compare orders numbers numerically, RFC3339 timestamps chronologically and
// everything else by string form. nil sorts first.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if af, err := strconv.ParseFloat(as, 64); err == nil {
		if bf, err := strconv.ParseFloat(bs, 64); err == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return at.Compare(bt)
		}
	}
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
