package media

import (
	"strconv"
	"strings"
)

// RangeKind classifies a parsed Range header.
type RangeKind int

const (
	// RangeNone serves the whole resource with status 200. Absent,
	// malformed and multi-range headers all land here: serving full
	// content keeps seeking clients working.
	RangeNone RangeKind = iota
	// RangePartial serves bytes [Start, End] with status 206.
	RangePartial
	// RangeUnsatisfiable answers 416 with Content-Range: bytes */size.
	RangeUnsatisfiable
)

// RangeOutcome is the resolved byte interval for one request. Start and
// End are inclusive and only meaningful for RangePartial.
type RangeOutcome struct {
	Kind  RangeKind
	Start int64
	End   int64
}

// ParseRange resolves a Range header against the resource's total size.
// Only the single-range "bytes=<start>-<end>" form is supported, with
// either bound optional. Multi-range requests degrade to full content
// rather than erroring.
func ParseRange(header string, totalSize int64) RangeOutcome {
	if header == "" {
		return RangeOutcome{Kind: RangeNone}
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return RangeOutcome{Kind: RangeNone}
	}
	if strings.Contains(spec, ",") {
		return RangeOutcome{Kind: RangeNone}
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return RangeOutcome{Kind: RangeNone}
	}

	switch {
	case startStr == "" && endStr == "":
		return RangeOutcome{Kind: RangeNone}

	case startStr == "":
		// Suffix form: the last <endStr> bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n < 0 {
			return RangeOutcome{Kind: RangeNone}
		}
		if n == 0 || totalSize == 0 {
			return RangeOutcome{Kind: RangeUnsatisfiable}
		}
		start := totalSize - n
		if start < 0 {
			start = 0
		}
		return RangeOutcome{Kind: RangePartial, Start: start, End: totalSize - 1}

	default:
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return RangeOutcome{Kind: RangeNone}
		}
		end := totalSize - 1
		if endStr != "" {
			end, err = strconv.ParseInt(endStr, 10, 64)
			if err != nil || end < 0 {
				return RangeOutcome{Kind: RangeNone}
			}
		}
		if end > totalSize-1 {
			end = totalSize - 1
		}
		if start >= totalSize || start > end {
			return RangeOutcome{Kind: RangeUnsatisfiable}
		}
		return RangeOutcome{Kind: RangePartial, Start: start, End: end}
	}
}

// Length returns the number of bytes the outcome covers given the
// resource's total size.
func (o RangeOutcome) Length(totalSize int64) int64 {
	switch o.Kind {
	case RangePartial:
		return o.End - o.Start + 1
	case RangeNone:
		return totalSize
	default:
		return 0
	}
}
