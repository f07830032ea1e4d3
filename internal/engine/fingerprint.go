// internal/engine/fingerprint.go
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/strixlabs/killwatch/internal/filter"
	"github.com/strixlabs/killwatch/internal/types"
)

/*
 * Event fingerprinting.
 *
 * The fingerprint is a SHA-256 over the event's canonical attribute map:
 * keys in sorted order, scalars rendered through the same canonical form
 * the index uses, list elements in delivery order. Two deliveries of the
 * same normalized event therefore produce the same fingerprint, which is
 * what lets the match cache absorb upstream retries.
 */

// EventFingerprint computes the stable cache key for a normalized event.
func EventFingerprint(ev types.NormalizedEvent) types.Fingerprint {
	keys := make([]string, 0, len(ev))
	for k := range ev {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		writeValue(h, ev[k])
		h.Write([]byte{0xff})
	}
	return types.Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func writeValue(h interface{ Write(p []byte) (int, error) }, v any) {
	if key, ok := filter.CanonicalKey(v); ok {
		h.Write([]byte(key))
		return
	}
	if elems, ok := filter.AsList(v); ok {
		h.Write([]byte("l:" + strconv.Itoa(len(elems))))
		for _, e := range elems {
			h.Write([]byte{0})
			writeValue(h, e)
		}
		return
	}
	// Unsupported attribute types hash as their absence marker; the
	// vocabulary keeps these out of real events.
	h.Write([]byte("x:"))
}
