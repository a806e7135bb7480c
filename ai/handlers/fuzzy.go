package handlers

import "strings"

// MatchThreshold is the minimum similarity accepted as a match.
const MatchThreshold = 0.6

// Similarity returns the Ratcliff/Obershelp ratio of a and b in [0, 1]:
// twice the number of matched runes over the total rune count.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

// matchingRunes sums the longest common blocks found recursively on both sides of each match.
func matchingRunes(a, b []rune) int {
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+k:], b[j+k:])
}

// longestMatch finds the longest common substring, preferring the earliest one in a, then in b.
func longestMatch(a, b []rune) (besti, bestj, bestk int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] != b[j-1] {
				cur[j] = 0
				continue
			}
			cur[j] = prev[j-1] + 1
			if cur[j] > bestk {
				bestk = cur[j]
				besti, bestj = i-bestk, j-bestk
			}
		}
		prev, cur = cur, prev
	}
	return besti, bestj, bestk
}

// BestMatch returns the item whose key is most similar to query (case-insensitive).
// ok is false when no item reaches MatchThreshold.
func BestMatch[T any](query string, items []T, key func(T) string) (best T, score float64, ok bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return best, 0, false
	}
	for _, item := range items {
		s := Similarity(q, strings.ToLower(key(item)))
		if s > score {
			best, score = item, s
		}
	}
	if score < MatchThreshold {
		var zero T
		return zero, score, false
	}
	return best, score, true
}

// matchEvent finds an event by name: containment in either direction first, then similarity.
func matchEvent(name string, events []Event) (Event, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Event{}, false
	}
	for _, e := range events {
		s := strings.ToLower(e.Summary)
		if s != "" && (strings.Contains(s, n) || strings.Contains(n, s)) {
			return e, true
		}
	}
	e, _, ok := BestMatch(n, events, func(e Event) string { return e.Summary })
	return e, ok
}
