package core

// stripeSizes distributes maxResources permits over the requested number of
// stripes. The stripe count is clamped to maxResources so every stripe owns
// at least one permit. The first maxResources mod stripes stripes receive one
// extra permit, in order, so the result is deterministic:
// stripeSizes(5, 3) = [2 2 1].
func stripeSizes(maxResources, requested int) []int {
	stripes := min(requested, maxResources)
	base := maxResources / stripes
	rem := maxResources % stripes

	sizes := make([]int, stripes)
	for i := range sizes {
		if i < rem {
			sizes[i] = base + 1
		} else {
			sizes[i] = base
		}
	}
	return sizes
}
