package pipeline

// Dedup removes records sharing an identity, keeping the first
// occurrence's full record and preserving input order. Records with an
// empty identity are dropped.
func Dedup[T any](records []T, identity func(T) string) []T {
	seen := make(map[string]struct{}, len(records))
	unique := make([]T, 0, len(records))
	for _, rec := range records {
		key := identity(rec)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, rec)
	}
	return unique
}
