package reconcile

import (
	"cmp"
	"encoding/json"
	"slices"

	"focussync/internal/models"
	"focussync/internal/remote"
)

// mergeReminders applies remote reminders onto local ones. A remote item
// wins only when its UpdatedAt is strictly greater; zero is oldest. Local
// items without a remote counterpart are kept as is.
func mergeReminders(local, cloud []models.Reminder) ([]models.Reminder, int) {
	merged := make([]models.Reminder, len(local), len(local)+len(cloud))
	copy(merged, local)

	index := make(map[string]int, len(merged))
	for i, r := range merged {
		if r.ID == "" {
			continue
		}
		if _, dup := index[r.ID]; !dup {
			index[r.ID] = i
		}
	}

	changed := 0
	for _, cr := range cloud {
		if cr.ID == "" {
			continue
		}
		i, ok := index[cr.ID]
		if !ok {
			index[cr.ID] = len(merged)
			merged = append(merged, cr)
			changed++
			continue
		}
		if cr.UpdatedAt > merged[i].UpdatedAt {
			merged[i] = cr
			changed++
		}
	}
	return merged, changed
}

// mergeAnalytics unions records by id with local records first, capped to
// limit. It returns the number of remote records that made it in.
func mergeAnalytics(local, cloud []models.AnalyticsRecord, limit int) ([]models.AnalyticsRecord, int) {
	seen := make(map[string]struct{}, len(local)+len(cloud))
	merged := make([]models.AnalyticsRecord, 0, len(local)+len(cloud))
	for _, a := range local {
		if a.ID != "" {
			seen[a.ID] = struct{}{}
		}
		merged = append(merged, a)
	}
	localCount := len(merged)
	for _, ca := range cloud {
		if ca.ID == "" {
			continue
		}
		if _, ok := seen[ca.ID]; ok {
			continue
		}
		seen[ca.ID] = struct{}{}
		merged = append(merged, ca)
	}

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	added := len(merged) - localCount
	if added < 0 {
		added = 0
	}
	return merged, added
}

// newestAnalytics returns at most n records with the greatest StartedAt,
// keeping their relative order.
func newestAnalytics(in []models.AnalyticsRecord, n int) []models.AnalyticsRecord {
	if n <= 0 || len(in) <= n {
		return in
	}
	idx := make([]int, len(in))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(in[b].StartedAt, in[a].StartedAt)
	})
	idx = idx[:n]
	slices.Sort(idx)

	out := make([]models.AnalyticsRecord, 0, n)
	for _, i := range idx {
		out = append(out, in[i])
	}
	return out
}

// decodeReminders decodes remote rows, dropping rows that fail to decode or
// have no id. The second return is the number dropped.
func decodeReminders(recs []remote.Record) ([]models.Reminder, int) {
	out := make([]models.Reminder, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		var r models.Reminder
		if err := json.Unmarshal(rec.Data, &r); err != nil || r.ID == "" {
			skipped++
			continue
		}
		out = append(out, r)
	}
	return out, skipped
}

func decodeAnalytics(recs []remote.Record) ([]models.AnalyticsRecord, int) {
	out := make([]models.AnalyticsRecord, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		var a models.AnalyticsRecord
		if err := json.Unmarshal(rec.Data, &a); err != nil || a.ID == "" {
			skipped++
			continue
		}
		out = append(out, a)
	}
	return out, skipped
}
