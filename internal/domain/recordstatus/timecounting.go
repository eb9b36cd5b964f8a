package recordstatus

import (
	"strconv"
	"strings"
)

// maxTimeCountingLen is the width of the picklist time_counting column.
const maxTimeCountingLen = 7

// ParseTimeCounting decodes the comma-delimited category list stored on a
// picklist value. "" and ",," decode to an empty list; surrounding commas are
// ignored ("1", ",1,2," are both valid). Any element that is not an integer
// yields ErrIllegalValue.
func ParseTimeCounting(s string) ([]TimeCounting, error) {
	if s == "" || s == ",," {
		return []TimeCounting{}, nil
	}
	trimmed := strings.Trim(s, ",")
	if trimmed == "" {
		return []TimeCounting{}, nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]TimeCounting, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, illegalValue(p)
		}
		out = append(out, TimeCounting(n))
	}
	return out, nil
}

// FormatTimeCounting encodes categories as ",a,b,". An empty list encodes to
// "", which is stored as NULL. Unknown categories and encodings wider than
// the column yield ErrIllegalValue.
func FormatTimeCounting(values []TimeCounting) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteByte(',')
	for _, v := range values {
		if !v.Valid() {
			return "", illegalValue(strconv.Itoa(int(v)))
		}
		b.WriteString(strconv.Itoa(int(v)))
		b.WriteByte(',')
	}
	if b.Len() > maxTimeCountingLen {
		return "", illegalValue(b.String())
	}
	return b.String(), nil
}
