package cutoff

// Reconcile merges the round tables into one offer per institution and program.
// Rounds are visited in ascending order and the first qualifying record of a
// pair wins, so an offer always carries the earliest round that admits rank.
// Records failing the rank or program filter never claim a pair.
func Reconcile(tables RoundTables, rank int, programs ProgramSet) []ReconciledOffer {
	claimed := make(map[pairKey]struct{})
	var offers []ReconciledOffer

	for _, round := range Rounds {
		for _, rec := range tables[round] {
			if !qualifies(rec, rank, programs) {
				continue
			}
			key := rec.key()
			if _, ok := claimed[key]; ok {
				continue
			}
			claimed[key] = struct{}{}
			offers = append(offers, ReconciledOffer{
				Institution:  rec.Institution,
				Program:      rec.Program,
				CategoryRank: rec.Cutoff.Rank,
				WinningRound: round,
				Likelihood:   round.Likelihood(),
			})
		}
	}
	return offers
}

// CountMatching counts distinct institution, program and cutoff triples that
// pass the filters in any round. It is computed independently of Reconcile:
// a pair qualifying in two rounds with different cutoffs counts twice.
func CountMatching(tables RoundTables, rank int, programs ProgramSet) int {
	type triple struct {
		pair pairKey
		rank int
	}
	seen := make(map[triple]struct{})

	for _, round := range Rounds {
		for _, rec := range tables[round] {
			if !qualifies(rec, rank, programs) {
				continue
			}
			seen[triple{pair: rec.key(), rank: rec.Cutoff.Rank}] = struct{}{}
		}
	}
	return len(seen)
}

func qualifies(rec CutoffRecord, rank int, programs ProgramSet) bool {
	return rec.Cutoff.Admits(rank) && programs.Allows(rec.Program)
}
