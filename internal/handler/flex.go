package handler

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// flexID accepts a product id as a JSON number or string.  Anything that is
// not a positive integer decodes to 0, which the services treat as "no id".
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	if n := parseFlex(b); n > 0 {
		*f = flexID(n)
	} else {
		*f = 0
	}
	return nil
}

// flexInt accepts a quantity as a JSON number or numeric string.  Fractions
// are truncated; anything unparseable decodes to 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = flexInt(parseFlex(b))
	return nil
}

func parseFlex(b []byte) int64 {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0
		}
	} else {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	return 0
}
