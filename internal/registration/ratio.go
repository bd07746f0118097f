package registration

// FillRatio computes the fill ratio per priority bucket by greedily consuming
// capacity in priority order: primary choice first, then first through fifth
// alternates. The first-alternate bucket has the primary count subtracted
// because the portal reports it cumulatively.
//
// While capacity covers a bucket its ratio is 1 and the capacity shrinks by
// the bucket size; the bucket that exhausts capacity gets the fractional
// remainder, and every later bucket gets remaining/size of a zero capacity.
// Ratios are always within [0, 1].
func FillRatio(st Status) [6]float64 {
	applicants := [6]int{
		st.Primary,
		st.First - st.Primary,
		st.Second,
		st.Third,
		st.Fourth,
		st.Fifth,
	}

	var ratio [6]float64
	excess := st.Capacity
	for i, a := range applicants {
		if excess >= a && excess > 0 {
			ratio[i] = 1
			excess -= a
			continue
		}
		if a != 0 {
			ratio[i] = float64(excess) / float64(a)
		}
		excess = 0
	}
	return ratio
}
