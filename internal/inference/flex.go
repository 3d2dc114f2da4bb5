package inference

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Models answer with loosely typed JSON. The Flex types accept the shapes
// seen in practice and normalize them at the decode boundary.

// FlexFloat accepts a JSON number, a numeric string, or a percentage string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(n)
	return nil
}

// Unit returns the value on a [0,1] scale. Values above 1 are treated as
// percentages; the result is clamped.
func (f FlexFloat) Unit() float64 {
	v := float64(f)
	if v > 1 {
		v /= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// FlexInt accepts a JSON number or a string containing digits ("2021 model").
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*i = FlexInt(int(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	digits := strings.Builder{}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		*i = 0
		return nil
	}
	n64, err := strconv.Atoi(digits.String())
	if err != nil {
		return err
	}
	*i = FlexInt(n64)
	return nil
}

// FlexList accepts a JSON array of strings or a single pipe/newline separated string.
type FlexList []string

func (l *FlexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = cleanItems(items)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = cleanItems(strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == '\n' }))
	return nil
}

func cleanItems(items []string) FlexList {
	out := make(FlexList, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
