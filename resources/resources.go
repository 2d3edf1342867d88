package resources

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Resources maps a Tag to a nonnegative quantity. A missing key means zero
// for Contains/Subtract purposes, but Merge preserves keys it is told to
// keep even when the stored quantity is zero; RemoveInvalid is what
// actually drops zero/negative entries.
type Resources map[Tag]int64

// Clone returns an independent copy.
func (r Resources) Clone() Resources {
	out := make(Resources, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Contains reports whether avail has at least req's quantity for every tag
// req names. Tags present only in avail are irrelevant.
func Contains(avail, req Resources) bool {
	for tag, want := range req {
		if avail[tag] < want {
			return false
		}
	}
	return true
}

// Compatible reports whether every tag present in rhs with a nonzero
// quantity is also present in lhs with a nonzero quantity. Used to verify a
// request only names device/resource-type combinations the monitor knows
// about at all, independent of available quantity.
func Compatible(lhs, rhs Resources) bool {
	for tag, qty := range rhs {
		if qty <= 0 {
			continue
		}
		if lhs[tag] <= 0 {
			return false
		}
	}
	return true
}

// Merge adds rhs's quantities into lhs in place and returns lhs. When
// skipNonExist is true, tags absent from lhs are left absent (ignored);
// otherwise they are inserted with rhs's quantity.
func Merge(lhs, rhs Resources, skipNonExist bool) Resources {
	for tag, qty := range rhs {
		if _, ok := lhs[tag]; !ok {
			if skipNonExist {
				continue
			}
			lhs[tag] = 0
		}
		lhs[tag] += qty
	}
	return lhs
}

// Subtract removes rhs's quantities from lhs in place and returns lhs.
// Subtraction clamps at zero and then removes any tag whose quantity fell to
// zero (or was already absent and skipNonExist is false, mirroring Merge's
// symmetry). When skipNonExist is true, tags absent from lhs are left
// untouched.
func Subtract(lhs, rhs Resources, skipNonExist bool) Resources {
	for tag, qty := range rhs {
		cur, ok := lhs[tag]
		if !ok {
			if skipNonExist {
				continue
			}
			cur = 0
		}
		cur -= qty
		if cur < 0 {
			cur = 0
		}
		if cur == 0 {
			delete(lhs, tag)
		} else {
			lhs[tag] = cur
		}
	}
	return lhs
}

// Max mutates lhs to be the element-wise maximum of lhs and rhs, inserting
// tags present only in rhs, and returns lhs for composition (matching Merge
// and Subtract). Used by the session admission tracker to combine a
// candidate session's temporary declaration with the current peak's.
func Max(lhs, rhs Resources) Resources {
	for tag, qty := range rhs {
		if cur, ok := lhs[tag]; !ok || qty > cur {
			lhs[tag] = qty
		}
	}
	return lhs
}

// Scale multiplies every quantity in lhs by factor in place, rounding to
// the nearest nonnegative integer, and returns lhs. Tags that round to zero
// are removed.
func Scale(lhs Resources, factor float64) Resources {
	for tag, qty := range lhs {
		scaled := int64(math.Round(float64(qty) * factor))
		if scaled <= 0 {
			delete(lhs, tag)
			continue
		}
		lhs[tag] = scaled
	}
	return lhs
}

// RemoveInvalid drops every tag with a non-positive quantity (including any
// tag whose ResourceType is Unknown and was given a quantity of zero or
// less by a failed parse) and returns lhs. Applied at every mutation
// boundary so a Resources value is never observed holding dead weight.
func RemoveInvalid(lhs Resources) Resources {
	for tag, qty := range lhs {
		if qty <= 0 || tag.Type == Unknown {
			delete(lhs, tag)
		}
	}
	return lhs
}

// sortedTags returns the tags of r sorted by Tag.Less, for deterministic
// debug rendering.
func sortedTags(r Resources) []Tag {
	tags := make([]Tag, 0, len(r))
	for t := range r {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Less(tags[j]) })
	return tags
}

// DebugString renders r deterministically: tags in sorted order, one per
// line, prefixed with indent.
func DebugString(r Resources, indent string) string {
	if len(r) == 0 {
		return indent + "(empty)\n"
	}
	var b strings.Builder
	for _, tag := range sortedTags(r) {
		b.WriteString(indent)
		b.WriteString(tag.String())
		b.WriteString(" = ")
		b.WriteString(strconv.FormatInt(r[tag], 10))
		b.WriteString("\n")
	}
	return b.String()
}
