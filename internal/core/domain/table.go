package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// TableRecordsJSON renders rows as a JSON array of objects keyed by the header row.
// Missing trailing cells become empty strings; extra cells get positional keys.
func TableRecordsJSON(rows [][]string) (string, bool) {
	if len(rows) < 2 {
		return "", false
	}
	keys := newKeySet()
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = columnName(i)
		}
		header[i] = keys.claim(h)
	}
	extra := map[int]string{}

	records := make([]orderedRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := orderedRecord{}
		width := len(header)
		if len(row) > width {
			width = len(row)
		}
		for i := 0; i < width; i++ {
			var key string
			if i < len(header) {
				key = header[i]
			} else if k, ok := extra[i]; ok {
				key = k
			} else {
				key = keys.claim(columnName(i))
				extra[i] = key
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			rec = append(rec, field{Key: key, Value: value})
		}
		records = append(records, rec)
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

type field struct {
	Key   string
	Value string
}

// orderedRecord keeps column order stable in the serialized JSON.
type orderedRecord []field

func (r orderedRecord) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := marshalString(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := marshalString(f.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func marshalString(s string) ([]byte, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSuffix(b.String(), "\n")), nil
}

// keySet hands out record keys, suffixing _2, _3 and so on until the key is unused.
type keySet map[string]bool

func newKeySet() keySet { return keySet{} }

func (s keySet) claim(base string) string {
	key := base
	for n := 2; s[key]; n++ {
		key = base + "_" + strconv.Itoa(n)
	}
	s[key] = true
	return key
}

func columnName(i int) string {
	return "col_" + strconv.Itoa(i+1)
}

// ParseTableRecords reverses TableRecordsJSON, keeping the column order of the first record.
func ParseTableRecords(content string) ([]string, [][]string, bool) {
	dec := json.NewDecoder(strings.NewReader(content))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('[') {
		return nil, nil, false
	}

	var header []string
	index := map[string]int{}
	var rows [][]string
	for dec.More() {
		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return nil, nil, false
		}
		row := make([]string, len(header))
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, nil, false
			}
			key, _ := keyTok.(string)
			var value any
			if err := dec.Decode(&value); err != nil {
				return nil, nil, false
			}
			col, ok := index[key]
			if !ok {
				col = len(header)
				index[key] = col
				header = append(header, key)
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = cellString(value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, nil, false
		}
		rows = append(rows, row)
	}
	if len(header) == 0 {
		return nil, nil, false
	}
	for i := range rows {
		for len(rows[i]) < len(header) {
			rows[i] = append(rows[i], "")
		}
	}
	return header, rows, true
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}
