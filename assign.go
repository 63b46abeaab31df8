/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	crand "crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"time"
)

// AssignmentResult pairs one participant with its drawn item and location.
type AssignmentResult struct {
	PlayerName string
	Item       string
	Location   string
	AssignedAt time.Time
}

// shuffled returns an unbiased Fisher-Yates permutation of src without
// touching it. Randomness comes from crypto/rand, falling back to
// math/rand/v2 if the system source fails.
func shuffled(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)

	for i := len(out) - 1; i > 0; i-- {
		var j int
		n, err := crand.Int(crand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			j = mrand.IntN(i + 1)
		} else {
			j = int(n.Int64())
		}
		out[i], out[j] = out[j], out[i]
	}

	return out
}

// randomAssignments draws a random bijection from the joined, unassigned
// participants onto the item and location pools, independently for each
// pool. Pools are never mutated; already-assigned participants pass
// through untouched even if a caller forgets to filter them out.
//
// The duplicate check on the way out is a sanity check on the shuffle, not
// a recovery path: if it fires, the engine itself is broken.
func randomAssignments(participants []Participant, items, locations []string) ([]AssignmentResult, error) {
	candidates := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if p.UserName != "" && !p.Assigned {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		return nil, &NoCandidatesError{}
	}
	if len(candidates) > len(items) {
		return nil, &InsufficientSupplyError{Pool: "items", Needed: len(candidates), Have: len(items)}
	}
	if len(candidates) > len(locations) {
		return nil, &InsufficientSupplyError{Pool: "locations", Needed: len(candidates), Have: len(locations)}
	}

	shuffledItems := shuffled(items)
	shuffledLocations := shuffled(locations)

	now := time.Now()
	results := make([]AssignmentResult, len(candidates))
	for i, p := range candidates {
		results[i] = AssignmentResult{
			PlayerName: p.Name,
			Item:       shuffledItems[i],
			Location:   shuffledLocations[i],
			AssignedAt: now,
		}
	}

	if err := checkNoDuplicates(results); err != nil {
		return nil, err
	}

	return results, nil
}

func checkNoDuplicates(results []AssignmentResult) error {
	seenItems := make(map[string]bool, len(results))
	seenLocations := make(map[string]bool, len(results))

	for _, r := range results {
		if seenItems[r.Item] {
			return &duplicateAssignmentError{Pool: "item", Value: r.Item}
		}
		seenItems[r.Item] = true

		if seenLocations[r.Location] {
			return &duplicateAssignmentError{Pool: "location", Value: r.Location}
		}
		seenLocations[r.Location] = true
	}

	return nil
}
