package cutoff

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offersWithRanks(ranks ...int) []ReconciledOffer {
	out := make([]ReconciledOffer, len(ranks))
	for i, r := range ranks {
		round := Rounds[i%len(Rounds)]
		out[i] = ReconciledOffer{
			Institution:  fmt.Sprintf("College %03d", i),
			Program:      "CS Computers",
			CategoryRank: r,
			WinningRound: round,
			Likelihood:   round.Likelihood(),
		}
	}
	return out
}

func sequentialOffers(n int) []ReconciledOffer {
	ranks := make([]int, n)
	for i := range ranks {
		ranks[i] = n - i
	}
	return offersWithRanks(ranks...)
}

func TestTotalPages(t *testing.T) {
	p := DefaultPresentation()

	tests := []struct {
		matching int
		want     int
	}{
		{0, 1},
		{1, 1},
		{40, 1},
		{41, 2},
		{80, 2},
		{81, 3},
		{150, 3},
		{10000, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("matching=%d", tt.matching), func(t *testing.T) {
			assert.Equal(t, tt.want, p.TotalPages(tt.matching))
		})
	}
}

func TestPaginateSortsAscending(t *testing.T) {
	p := DefaultPresentation()
	offers := offersWithRanks(900, 300, 600, 100)

	page := p.Paginate(offers, 1, len(offers))

	require.Len(t, page.Offers, 4)
	for i := 1; i < len(page.Offers); i++ {
		assert.LessOrEqual(t, page.Offers[i-1].CategoryRank, page.Offers[i].CategoryRank)
	}
	assert.Equal(t, 900, offers[0].CategoryRank, "input must not be reordered")
}

func TestPaginateTiesKeepDiscoveryOrder(t *testing.T) {
	offers := offersWithRanks(500, 500, 200, 500)

	page := DefaultPresentation().Paginate(offers, 1, 4)

	require.Len(t, page.Offers, 4)
	assert.Equal(t, "College 002", page.Offers[0].Institution)
	assert.Equal(t, "College 000", page.Offers[1].Institution)
	assert.Equal(t, "College 001", page.Offers[2].Institution)
	assert.Equal(t, "College 003", page.Offers[3].Institution)
}

func TestPaginateDistinctRoundsExample(t *testing.T) {
	tables := distinctTables(50)
	offers := Reconcile(tables, 1000, ProgramSet{})
	matching := CountMatching(tables, 1000, ProgramSet{})

	page := DefaultPresentation().Paginate(offers, 1, matching)

	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 150, page.OfferCount)
	assert.Equal(t, 150, page.MatchingCount)
	require.Len(t, page.Offers, 40)
	assert.Equal(t, 1100, page.Offers[0].CategoryRank)
	assert.Equal(t, 1139, page.Offers[39].CategoryRank)
}

func TestPaginateConcatenationIsSortedPrefix(t *testing.T) {
	p := DefaultPresentation()
	offers := sequentialOffers(150)
	full := sortByCategoryRank(offers)

	var all []ReconciledOffer
	for n := 1; n <= p.TotalPages(len(offers)); n++ {
		all = append(all, p.Paginate(offers, n, len(offers)).Offers...)
	}

	require.Len(t, all, 120)
	assert.Equal(t, full[:120], all)
}

func TestPaginateOutOfRange(t *testing.T) {
	p := DefaultPresentation()
	offers := sequentialOffers(50)

	for _, n := range []int{0, -1, 3, 4, 100} {
		page := p.Paginate(offers, n, 50)
		assert.NotNil(t, page.Offers)
		assert.Empty(t, page.Offers, "page %d", n)
		assert.Equal(t, 2, page.TotalPages)
	}

	second := p.Paginate(offers, 2, 50)
	assert.Len(t, second.Offers, 10)
}

func TestPaginateStopsAtMaxPages(t *testing.T) {
	p := DefaultPresentation()
	offers := sequentialOffers(200)

	third := p.Paginate(offers, 3, len(offers))
	require.Len(t, third.Offers, 40)
	assert.Equal(t, 81, third.Offers[0].CategoryRank)
	assert.Equal(t, 3, third.TotalPages)

	for _, n := range []int{4, 5} {
		page := p.Paginate(offers, n, len(offers))
		assert.Empty(t, page.Offers, "rows at offset %d stay unreachable", (n-1)*40)
		assert.Equal(t, 200, page.OfferCount)
	}
}

func TestPaginateUsesMatchingCountForPages(t *testing.T) {
	p := DefaultPresentation()
	offers := sequentialOffers(30)

	page := p.Paginate(offers, 2, 95)

	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 30, page.OfferCount)
	assert.Equal(t, 95, page.MatchingCount)
	assert.Empty(t, page.Offers)
}

func TestExportOrderingCapAndBlocks(t *testing.T) {
	p := DefaultPresentation()
	offers := sequentialOffers(200)

	ordered := p.ExportOrdering(offers)

	require.Len(t, ordered, 75)
	top := sortByCategoryRank(offers)[:75]
	assert.ElementsMatch(t, top, ordered)

	for start := 0; start < len(ordered); start += 30 {
		end := start + 30
		if end > len(ordered) {
			end = len(ordered)
		}
		block := ordered[start:end]
		for i := 1; i < len(block); i++ {
			assert.GreaterOrEqual(t, int(block[i-1].WinningRound), int(block[i].WinningRound))
		}
		assert.ElementsMatch(t, top[start:end], block, "rows must not cross blocks")
	}
}

func TestExportOrderingWithinBlockKeepsRankOrderPerRound(t *testing.T) {
	offers := []ReconciledOffer{
		{Institution: "A", CategoryRank: 10, WinningRound: RoundFirst},
		{Institution: "B", CategoryRank: 20, WinningRound: RoundThird},
		{Institution: "C", CategoryRank: 30, WinningRound: RoundFirst},
		{Institution: "D", CategoryRank: 40, WinningRound: RoundThird},
		{Institution: "E", CategoryRank: 50, WinningRound: RoundSecond},
	}

	ordered := DefaultPresentation().ExportOrdering(offers)

	var names []string
	for _, o := range ordered {
		names = append(names, o.Institution)
	}
	assert.Equal(t, []string{"B", "D", "E", "A", "C"}, names)
}

func TestExportOrderingSmallAndEmpty(t *testing.T) {
	p := DefaultPresentation()
	assert.Empty(t, p.ExportOrdering(nil))
	assert.Len(t, p.ExportOrdering(sequentialOffers(10)), 10)
}

func TestPresentationZeroValueUsesDefaults(t *testing.T) {
	var p Presentation
	assert.Equal(t, 3, p.TotalPages(500))
	assert.Len(t, p.Paginate(sequentialOffers(100), 1, 100).Offers, 40)
	assert.Len(t, p.ExportOrdering(sequentialOffers(100)), 75)
}
