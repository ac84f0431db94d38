package geom

import "sort"

// Covers reports whether the union of boxes encloses target. The common case
// of a single enclosing box is answered directly; otherwise the overlapping
// boxes are split into a compressed grid and every cell of target is checked.
func Covers(boxes []Box, target Box) bool {
	var rel []Box
	for _, b := range boxes {
		if b.ContainsBox(target) {
			return true
		}
		if b.Touches(target) {
			rel = append(rel, b)
		}
	}
	if len(rel) == 0 {
		return false
	}

	xs := cuts(rel, target, 0)
	ys := cuts(rel, target, 1)
	zs := cuts(rel, target, 2)
	for i := 0; i+1 < len(xs); i++ {
		for j := 0; j+1 < len(ys); j++ {
			for k := 0; k+1 < len(zs); k++ {
				c := Vec3{(xs[i] + xs[i+1]) / 2, (ys[j] + ys[j+1]) / 2, (zs[k] + zs[k+1]) / 2}
				if !anyContains(rel, c) {
					return false
				}
			}
		}
	}
	return true
}

func anyContains(boxes []Box, p Vec3) bool {
	for _, b := range boxes {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

// cuts returns the sorted split coordinates of target along axis. A flat
// target yields a single zero-width interval.
func cuts(boxes []Box, target Box, axis int) []float64 {
	lo, hi := target.Min[axis], target.Max[axis]
	if hi-lo <= containEps {
		return []float64{lo, lo}
	}
	out := []float64{lo, hi}
	for _, b := range boxes {
		for _, v := range [2]float64{b.Min[axis], b.Max[axis]} {
			if v > lo+containEps && v < hi-containEps {
				out = append(out, v)
			}
		}
	}
	sort.Float64s(out)
	uniq := out[:1]
	for _, v := range out[1:] {
		if v-uniq[len(uniq)-1] > containEps {
			uniq = append(uniq, v)
		}
	}
	return uniq
}
