package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brojonat/caesarbot/service/nats"
	"github.com/itchyny/gojq"
)

// Filter selects which change events reach a subscription. Table is required.
// Column/Value add an equality match on a record field, and JQ an optional
// predicate that must evaluate truthy against the record.
type Filter struct {
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	JQ     string `json:"jq,omitempty"`
}

// ParseFilter parses "table", "table:column=eq.value" or "table:column=value".
func ParseFilter(s string) (Filter, error) {
	table, cond, hasCond := strings.Cut(s, ":")
	f := Filter{Table: table}
	if f.Table == "" {
		return Filter{}, errors.New("filter table is required")
	}
	if !hasCond {
		return f, nil
	}
	column, value, ok := strings.Cut(cond, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter condition %q, expected column=value", cond)
	}
	f.Column = column
	f.Value = strings.TrimPrefix(value, "eq.")
	return f, nil
}

// subject narrows the bus subscription when the filter pins a wallet.
func (f Filter) subject() string {
	if f.Column == "wallet_address" {
		return nats.ChangeSubject(f.Table, f.Value)
	}
	return nats.ChangeSubject(f.Table, "")
}

// matcher is a compiled Filter.
type matcher struct {
	filter Filter
	code   *gojq.Code
}

func compileFilter(f Filter) (*matcher, error) {
	if f.Table == "" {
		return nil, errors.New("filter table is required")
	}
	m := &matcher{filter: f}
	if f.JQ != "" {
		query, err := gojq.Parse(f.JQ)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", f.JQ, err)
		}
		m.code, err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", f.JQ, err)
		}
	}
	return m, nil
}

// match reports whether event passes the filter.
func (m *matcher) match(event *nats.ChangeEvent) bool {
	if event.Table != m.filter.Table {
		return false
	}
	if m.filter.Column == "" && m.code == nil {
		return true
	}

	var record map[string]any
	if err := json.Unmarshal(event.Record, &record); err != nil {
		return false
	}

	if m.filter.Column != "" {
		v, ok := record[m.filter.Column]
		if !ok || fmt.Sprint(v) != m.filter.Value {
			return false
		}
	}

	if m.code != nil {
		iter := m.code.Run(record)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		return isTruthy(v)
	}
	return true
}

// isTruthy follows jq truthiness: only false and null are falsy.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
