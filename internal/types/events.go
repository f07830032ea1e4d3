// internal/types/events.go
package types

/*
 * Normalized event view.
 *
 * The ingestion pipeline flattens each raw killmail into a closed-vocabulary
 * attribute map before it reaches the engine; the engine never sees raw wire
 * formats. Values are scalars (float64, string, bool after JSON decoding) or
 * lists of scalars ([]any). Attributes referenced by a leaf but absent from
 * an event are "missing": every operator except neq/not_in evaluates false.
 */

// NormalizedEvent is a flat, read-only key to scalar-or-list map.
type NormalizedEvent map[string]any

// Get returns the attribute value and whether it is present. A present key
// with a nil value is treated as missing.
func (e NormalizedEvent) Get(field string) (any, bool) {
	v, ok := e[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// KillmailID returns the killmail_id attribute, or 0 when absent. Carried
// onto match results for the notification collaborator.
func (e NormalizedEvent) KillmailID() int64 {
	v, ok := e.Get(FieldKillmailID)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
