package regime

import "sort"

// Classify splits state ids into bull and bear sets by their mean on the
// return feature. Each side takes min(2, k/2) states; ties in the mean keep
// ascending id order.
func Classify(returnMeans []float64) (bull, bear []int) {
	k := len(returnMeans)
	ids := make([]int, k)
	for i := range ids {
		ids[i] = i
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return returnMeans[ids[a]] < returnMeans[ids[b]]
	})

	n := k / 2
	if n > 2 {
		n = 2
	}
	bear = append([]int{}, ids[:n]...)
	bull = append([]int{}, ids[k-n:]...)
	return bull, bear
}
