package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AttrKind discriminates the payload of an AttrValue.
type AttrKind int

const (
	AttrText AttrKind = iota
	AttrNumbers
)

// AttrValue is a decoded NetCDF attribute: either text or a list of numbers.
type AttrValue struct {
	Kind    AttrKind
	Text    string
	Numbers []float64
}

// TextAttr wraps s as a text attribute.
func TextAttr(s string) AttrValue {
	return AttrValue{Kind: AttrText, Text: s}
}

// NumberAttr wraps vs as a numeric attribute.
func NumberAttr(vs ...float64) AttrValue {
	return AttrValue{Kind: AttrNumbers, Numbers: vs}
}

// AsText returns the text payload, or ErrNotText for a numeric attribute.
func (a AttrValue) AsText() (string, error) {
	if a.Kind != AttrText {
		return "", fmt.Errorf("%s: %w", a, ErrNotText)
	}
	return strings.TrimRight(a.Text, "\x00"), nil
}

func (a AttrValue) String() string {
	if a.Kind == AttrText {
		return strconv.Quote(a.Text)
	}
	parts := make([]string, len(a.Numbers))
	for i, v := range a.Numbers {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
