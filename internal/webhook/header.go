package webhook

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// Header is an ordered, case-insensitive multimap of HTTP header names to values.
// The casing of the first insertion of a name is kept for iteration and output.
//
// A Header is a value: With and Without return modified copies and never touch
// the receiver, so a Header can be shared freely between goroutines.
type Header struct {
	entries []headerEntry
}

type headerEntry struct {
	name   string
	values []string
}

// NewHeader builds a Header from name/value pairs. Repeated names accumulate values.
func NewHeader(pairs ...string) Header {
	var h Header
	for i := 0; i+1 < len(pairs); i += 2 {
		h = h.add(pairs[i], pairs[i+1])
	}
	return h
}

// HeaderFromHTTP converts an http.Header. Names are sorted since http.Header has no order.
func HeaderFromHTTP(src http.Header) Header {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	h := Header{entries: make([]headerEntry, 0, len(names))}
	for _, name := range names {
		h.entries = append(h.entries, headerEntry{name: name, values: append([]string(nil), src[name]...)})
	}
	return h
}

func (h Header) index(name string) int {
	for i, e := range h.entries {
		if strings.EqualFold(e.name, name) {
			return i
		}
	}
	return -1
}

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	if i := h.index(name); i >= 0 && len(h.entries[i].values) > 0 {
		return h.entries[i].values[0]
	}
	return ""
}

// Values returns a copy of all values for name.
func (h Header) Values(name string) []string {
	if i := h.index(name); i >= 0 {
		return append([]string(nil), h.entries[i].values...)
	}
	return nil
}

// Has reports whether name is present.
func (h Header) Has(name string) bool {
	return h.index(name) >= 0
}

// Names returns header names in insertion order, with their original casing.
func (h Header) Names() []string {
	names := make([]string, len(h.entries))
	for i, e := range h.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of distinct header names.
func (h Header) Len() int {
	return len(h.entries)
}

// With returns a copy of h where name carries exactly the given values,
// replacing whatever was there before. Position and casing of an existing
// name are kept.
func (h Header) With(name string, values ...string) Header {
	out := h.clone()
	vals := append([]string(nil), values...)
	if i := out.index(name); i >= 0 {
		out.entries[i].values = vals
		return out
	}
	out.entries = append(out.entries, headerEntry{name: name, values: vals})
	return out
}

// Without returns a copy of h with name removed.
func (h Header) Without(name string) Header {
	i := h.index(name)
	if i < 0 {
		return h
	}
	out := Header{entries: make([]headerEntry, 0, len(h.entries)-1)}
	for j, e := range h.entries {
		if j == i {
			continue
		}
		out.entries = append(out.entries, headerEntry{name: e.name, values: append([]string(nil), e.values...)})
	}
	return out
}

// Equal reports whether both headers hold the same names (case-insensitively),
// in the same order, with the same values.
func (h Header) Equal(other Header) bool {
	if len(h.entries) != len(other.entries) {
		return false
	}
	for i, e := range h.entries {
		o := other.entries[i]
		if !strings.EqualFold(e.name, o.name) || len(e.values) != len(o.values) {
			return false
		}
		for j := range e.values {
			if e.values[j] != o.values[j] {
				return false
			}
		}
	}
	return true
}

// HTTP converts h into an http.Header for the transport.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		for _, v := range e.values {
			out.Add(e.name, v)
		}
	}
	return out
}

func (h Header) add(name, value string) Header {
	if i := h.index(name); i >= 0 {
		h.entries[i].values = append(h.entries[i].values, value)
		return h
	}
	h.entries = append(h.entries, headerEntry{name: name, values: []string{value}})
	return h
}

func (h Header) clone() Header {
	out := Header{entries: make([]headerEntry, len(h.entries), len(h.entries)+1)}
	for i, e := range h.entries {
		out.entries[i] = headerEntry{name: e.name, values: append([]string(nil), e.values...)}
	}
	return out
}

type headerJSON struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// MarshalJSON encodes h as an ordered list of {name, values} objects.
func (h Header) MarshalJSON() ([]byte, error) {
	out := make([]headerJSON, len(h.entries))
	for i, e := range h.entries {
		out[i] = headerJSON{Name: e.name, Values: e.values}
	}
	return json.Marshal(out)
}

func (h *Header) UnmarshalJSON(data []byte) error {
	var in []headerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var out Header
	for _, e := range in {
		out = out.With(e.Name, append(out.Values(e.Name), e.Values...)...)
	}
	*h = out
	return nil
}
