package retriever

import "sort"

// enumerate lists every key in the store, keeps the ones matching
// prefix/suffix/bounds, and groups survivors by ts14 bucket in
// ascending order.
func enumerate(keys []string, prefix, suffix, lowTS, highTS string) []bucketGroup {
	byBucket := make(map[string][]string)
	for _, k := range keys {
		bucket, ok := keyBucket(k, prefix, suffix)
		if !ok {
			continue
		}
		if lowTS != "" && bucket < lowTS {
			continue
		}
		if highTS != "" && bucket > highTS {
			continue
		}
		byBucket[bucket] = append(byBucket[bucket], k)
	}

	groups := make([]bucketGroup, 0, len(byBucket))
	for bucket, ks := range byBucket {
		sort.Strings(ks)
		groups = append(groups, bucketGroup{bucket: bucket, keys: ks})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].bucket < groups[j].bucket })
	return groups
}

type bucketGroup struct {
	bucket string
	keys   []string
}
