package store

import (
	"errors"
	"strings"
)

// Ranks are lowercase base36 strings compared lexicographically
// (fractional indexing). Records are listed in rank order; moving or
// duplicating a record only rewrites the rank of that one record.

const rankAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var ErrNoRankSpace = errors.New("no space between ranks")

func rankDigit(c byte) (int, bool) {
	i := strings.IndexByte(rankAlphabet, c)
	return i, i >= 0
}

// RankBetween returns a rank strictly between a and b. Either bound may be
// empty, meaning unbounded on that side.
func RankBetween(a, b string) (string, error) {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a != "" && b != "" && a >= b {
		return "", errors.New("RankBetween requires a < b")
	}

	inside := func(r string) bool {
		return r != "" && (a == "" || a < r) && (b == "" || r < b)
	}

	prefix := make([]byte, 0, 8)
	for i := 0; i < 256; i++ {
		lo, hi := 0, len(rankAlphabet)-1
		if i < len(a) {
			d, ok := rankDigit(a[i])
			if !ok {
				return "", errors.New("invalid rank character in lower bound")
			}
			lo = d
		}
		if i < len(b) {
			d, ok := rankDigit(b[i])
			if !ok {
				return "", errors.New("invalid rank character in upper bound")
			}
			hi = d
		}

		switch {
		case lo == hi:
			prefix = append(prefix, rankAlphabet[lo])
			continue
		case hi-lo > 1:
			r := string(append(prefix, rankAlphabet[lo+(hi-lo)/2]))
			if !inside(r) {
				// e.g. "y" and "y0": nothing sorts strictly between them.
				return "", ErrNoRankSpace
			}
			return r, nil
		default:
			// Adjacent digits: any extension of a still sorts below b.
			r := a + "0"
			if !inside(r) {
				return "", ErrNoRankSpace
			}
			return r, nil
		}
	}
	return "", ErrNoRankSpace
}

func RankAfter(a string) (string, error)  { return RankBetween(a, "") }
func RankBefore(b string) (string, error) { return RankBetween("", b) }
func RankInitial() (string, error)        { return RankBetween("", "") }

// RankBetweenUnique is RankBetween that also skips ranks already in use.
func RankBetweenUnique(existing map[string]bool, lower, upper string) (string, error) {
	cur := lower
	for i := 0; i < 256; i++ {
		r, err := RankBetween(cur, upper)
		if err != nil {
			return "", err
		}
		if !existing[r] {
			return r, nil
		}
		cur = r
	}
	return "", errors.New("unable to find unique rank")
}
