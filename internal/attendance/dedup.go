package attendance

// Dedupe collapses rows sharing a dedup key, keeping the row with the
// greatest updated-at. Missing timestamps count as 0. Ties resolve to the
// later-iterated row — "newest or rightmost wins" is the documented
// tie-break, not an iteration-order accident. Output preserves the order in
// which keys first appeared.
func Dedupe(rows []Entry) []Entry {
	winners := make(map[string]int, len(rows))
	var order []string
	for i, row := range rows {
		key := row.Key()
		prev, seen := winners[key]
		if !seen {
			winners[key] = i
			order = append(order, key)
			continue
		}
		// >= keeps the rightmost row on equal timestamps.
		if row.UpdatedAt >= rows[prev].UpdatedAt {
			winners[key] = i
		}
	}

	out := make([]Entry, 0, len(order))
	for _, key := range order {
		out = append(out, rows[winners[key]])
	}
	return out
}

// SplitByStatus buckets deduplicated rows into present and absent.
func SplitByStatus(rows []Entry) (present, absent []Entry) {
	for _, row := range rows {
		switch row.Status {
		case StatusPresent:
			present = append(present, row)
		case StatusAbsent:
			absent = append(absent, row)
		}
	}
	return present, absent
}
