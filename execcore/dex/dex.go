// Package dex holds the static chain x venue -> router-address lookup table
// built once at startup (spec.md §4.9). Grounded on the teacher's
// observability/metrics.go "build the vector set once, read many times"
// shape: everything here is immutable after New returns, so lookups need no
// locking.
package dex

import "strings"

// Entry is one configured router.
type Entry struct {
	Chain   string
	Venue   string
	Router  string
	Enabled bool
}

// Registry is a constant-time chain x venue -> router address lookup and its
// reverse (router address -> chain, venue), normalizing every key to
// lowercase at construction time. Disabled entries are omitted entirely so a
// lookup miss and a disabled-venue miss are indistinguishable to callers,
// matching spec.md §4.9's "excluded" wording.
type Registry struct {
	byChainVenue map[string]string // "chain|venue" -> router
	byRouter     map[string]venueKey
}

type venueKey struct {
	Chain string
	Venue string
}

// New builds a Registry from a flat entry list, normalizing chain, venue and
// router address to lowercase and dropping any entry with Enabled == false.
func New(entries []Entry) *Registry {
	r := &Registry{
		byChainVenue: make(map[string]string, len(entries)),
		byRouter:     make(map[string]venueKey, len(entries)),
	}
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		chain := strings.ToLower(strings.TrimSpace(e.Chain))
		venue := strings.ToLower(strings.TrimSpace(e.Venue))
		router := strings.ToLower(strings.TrimSpace(e.Router))
		if chain == "" || venue == "" || router == "" {
			continue
		}
		r.byChainVenue[key(chain, venue)] = router
		r.byRouter[router] = venueKey{Chain: chain, Venue: venue}
	}
	return r
}

func key(chain, venue string) string { return chain + "|" + venue }

// Router returns the router address configured for (chain, venue).
func (r *Registry) Router(chain, venue string) (string, bool) {
	addr, ok := r.byChainVenue[key(strings.ToLower(chain), strings.ToLower(venue))]
	return addr, ok
}

// Venue reverse-looks-up the (chain, venue) a router address belongs to.
func (r *Registry) Venue(router string) (chain, venue string, ok bool) {
	vk, ok := r.byRouter[strings.ToLower(router)]
	return vk.Chain, vk.Venue, ok
}

// Len returns the number of enabled, distinct router entries.
func (r *Registry) Len() int { return len(r.byChainVenue) }
