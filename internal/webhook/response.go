package webhook

import (
	"bytes"
	"encoding/json"
)

// ListOrSingle holds one or more header values. It marshals to a bare string
// when there is exactly one value and to a list otherwise.
type ListOrSingle []string

// First returns the first value, or "" if empty.
func (l ListOrSingle) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

func (l ListOrSingle) IsSingle() bool { return len(l) == 1 }

func (l ListOrSingle) Values() []string { return append([]string(nil), l...) }

func (l ListOrSingle) MarshalJSON() ([]byte, error) {
	if len(l) == 1 {
		return json.Marshal(l[0])
	}
	return json.Marshal([]string(l))
}

func (l *ListOrSingle) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = ListOrSingle{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = ListOrSingle(many)
	return nil
}

// ResponseView is a read-only view over a received response for inspection:
// headers keyed case-insensitively with every value kept, and the body as text.
type ResponseView struct {
	header Header
	body   string
}

// NewResponseView captures resp. An absent body becomes "".
func NewResponseView(resp LoggedResponse) ResponseView {
	var body string
	if resp.Body != nil {
		body = string(resp.Body)
	}
	return ResponseView{
		header: resp.Header.clone(),
		body:   body,
	}
}

// Header returns all values for name, matched case-insensitively.
func (v ResponseView) Header(name string) (ListOrSingle, bool) {
	if !v.header.Has(name) {
		return nil, false
	}
	return ListOrSingle(v.header.Values(name)), true
}

// HeaderNames returns the header names in source order.
func (v ResponseView) HeaderNames() []string {
	return v.header.Names()
}

func (v ResponseView) Body() string {
	return v.body
}

// MarshalJSON keeps header order, which a plain map would lose.
func (v ResponseView) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"headers":{`)
	for i, name := range v.header.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ListOrSingle(v.header.Values(name)))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"body":`)
	b, err := json.Marshal(v.body)
	if err != nil {
		return nil, err
	}
	buf.Write(b)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
