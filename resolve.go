package protect

// inferencePriority is the fixed order used when no explicit index kind is
// requested. ste_vec is deliberately absent: scalar terms never infer it.
var inferencePriority = []IndexKind{IndexUnique, IndexMatch, IndexOre}

// ResolveIndexKind decides which index kind applies to a term against the
// given column. explicit may be empty, in which case the kind is inferred
// from the column's configured indexes by fixed priority (unique > match >
// ore).
//
// Pure and deterministic: same inputs always produce the same result, and no
// state is touched.
func ResolveIndexKind(col Column, explicit IndexKind) (IndexKind, error) {
	if explicit != "" {
		if !explicit.known() {
			return "", validationErrorf(ValidationUnknownQueryOp, "unknown query op %q for %s (known: %s)",
				explicit, col.qualified(), kindList(knownIndexKinds))
		}
		if !col.HasIndex(explicit) {
			return "", validationErrorf(ValidationMissingIndex, "index %q not configured for %s (configured: %s)",
				explicit, col.qualified(), kindList(col.indexes))
		}
		return explicit, nil
	}

	if len(col.indexes) == 0 {
		return "", validationErrorf(ValidationMissingIndex, "no indexes configured for %s", col.qualified())
	}

	for _, k := range inferencePriority {
		if col.HasIndex(k) {
			return k, nil
		}
	}

	// Only ste_vec is configured; scalar inference never picks it.
	return "", validationErrorf(ValidationMissingIndex,
		"no inferable index for %s (configured: %s); JSON queries must use a Path or Contains term",
		col.qualified(), kindList(col.indexes))
}

func kindList(kinds []IndexKind) string {
	if len(kinds) == 0 {
		return "none"
	}
	s := ""
	for i, k := range kinds {
		if i > 0 {
			s += ", "
		}
		s += string(k)
	}
	return s
}
