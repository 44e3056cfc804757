// Package extras reads the configurable option schema attached to items and
// prices the options a customer picked.
package extras

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Option types understood by the order popup.
const (
	TypeSelect    = "EXTRA_SELECT"
	TypeCheckbox  = "EXTRA_CHECKBOX"
	TypeAmericano = "AMERICANO_EXTRA"
)

// ErrInvalidDetails is returned when a details payload cannot be priced.
var ErrInvalidDetails = errors.New("invalid order details")

// Option is one entry of an item's details schema.
type Option struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Values  []string `json:"values"`
	Prices  []int    `json:"prices"`
	Comment string   `json:"_comment,omitempty"`
	Display string   `json:"_display,omitempty"`
	Hide    bool     `json:"_hide,omitempty"`
}

// Multiple reports whether the option accepts several values.
func (o Option) Multiple() bool {
	return o.Type == TypeCheckbox || o.Type == TypeAmericano
}

// ParseSchema decodes an item's detailsConfigJson. An empty schema yields no
// options.
func ParseSchema(raw string) ([]Option, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var options []Option
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, fmt.Errorf("parse details schema: %w", err)
	}
	return options, nil
}

// ParseDetails decodes a details payload, which must be a JSON object keyed by
// option name.
func ParseDetails(raw string) (map[string]json.RawMessage, error) {
	var details map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	if details == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidDetails)
	}
	return details, nil
}

// Price returns the price delta of the selected options for a single unit.
// Options missing from the payload, or sent as null, add nothing.
func Price(options []Option, details map[string]json.RawMessage) (int, error) {
	total := 0
	for _, opt := range options {
		raw, ok := details[opt.Name]
		if !ok || len(opt.Values) == 0 {
			continue
		}
		indices, err := selection(raw, opt.Multiple())
		if err != nil {
			return 0, fmt.Errorf("%w: option %s: %v", ErrInvalidDetails, opt.Name, err)
		}
		for _, idx := range indices {
			if idx < 0 || idx >= len(opt.Values) {
				return 0, fmt.Errorf("%w: option %s has no value %d", ErrInvalidDetails, opt.Name, idx)
			}
			if idx < len(opt.Prices) {
				total += opt.Prices[idx]
			}
		}
	}
	return total, nil
}

func selection(raw json.RawMessage, multiple bool) ([]int, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	if multiple && strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		var values []json.RawMessage
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, err
		}
		out := make([]int, 0, len(values))
		for _, v := range values {
			idx, err := index(v)
			if err != nil {
				return nil, err
			}
			out = append(out, idx)
		}
		return out, nil
	}
	idx, err := index(raw)
	if err != nil {
		return nil, err
	}
	return []int{idx}, nil
}

// index accepts both 2 and "2", since form selects submit strings.
func index(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unsupported value %s", string(raw))
	}
	return strconv.Atoi(strings.TrimSpace(s))
}
