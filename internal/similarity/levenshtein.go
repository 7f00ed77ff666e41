package similarity

// Distance returns the Levenshtein edit distance between two strings,
// computed over runes so multi-byte characters count as single edits.
func Distance(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min(ins, del, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

// NormalizedDistance returns the edit distance divided by the rune length
// of the longer string, in [0, 1]. Symmetric in its arguments; identical
// strings are at distance 0.
func NormalizedDistance(a, b string) float64 {
	if a == b {
		return 0
	}

	la := len([]rune(a))
	lb := len([]rune(b))
	denom := max(la, lb)
	if denom == 0 {
		return 0
	}
	return float64(Distance(a, b)) / float64(denom)
}
