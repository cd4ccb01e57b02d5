package cutoff

import "sort"

const (
	DefaultPageSize    = 40
	DefaultMaxPages    = 3
	DefaultExportCap   = 75
	DefaultExportBlock = 30
)

// Presentation holds the paging and export bounds. Zero fields fall back to the defaults.
type Presentation struct {
	PageSize    int
	MaxPages    int
	ExportCap   int
	ExportBlock int
}

func DefaultPresentation() Presentation {
	return Presentation{
		PageSize:    DefaultPageSize,
		MaxPages:    DefaultMaxPages,
		ExportCap:   DefaultExportCap,
		ExportBlock: DefaultExportBlock,
	}
}

func (p Presentation) withDefaults() Presentation {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.ExportCap <= 0 {
		p.ExportCap = DefaultExportCap
	}
	if p.ExportBlock <= 0 {
		p.ExportBlock = DefaultExportBlock
	}
	return p
}

// TotalPages is ceil(matchingCount / PageSize) clamped to [1, MaxPages].
func (p Presentation) TotalPages(matchingCount int) int {
	p = p.withDefaults()
	pages := (matchingCount + p.PageSize - 1) / p.PageSize
	if pages > p.MaxPages {
		pages = p.MaxPages
	}
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Paginate sorts offers by ascending cutoff and slices out pageNumber.
// Pages below 1 or beyond TotalPages come back with no offers, so browsing
// stops at MaxPages even when the sorted list has rows past that offset.
func (p Presentation) Paginate(offers []ReconciledOffer, pageNumber, matchingCount int) ResultPage {
	p = p.withDefaults()
	page := ResultPage{
		Offers:        []ReconciledOffer{},
		PageNumber:    pageNumber,
		TotalPages:    p.TotalPages(matchingCount),
		PageSize:      p.PageSize,
		OfferCount:    len(offers),
		MatchingCount: matchingCount,
	}
	if pageNumber < 1 || pageNumber > page.TotalPages {
		return page
	}

	sorted := sortByCategoryRank(offers)
	start := (pageNumber - 1) * p.PageSize
	if start >= len(sorted) {
		return page
	}
	end := start + p.PageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	page.Offers = sorted[start:end]
	return page
}

// ExportOrdering truncates the ascending-cutoff sequence to ExportCap and then
// orders each consecutive ExportBlock by descending round.
func (p Presentation) ExportOrdering(offers []ReconciledOffer) []ReconciledOffer {
	p = p.withDefaults()
	sorted := sortByCategoryRank(offers)
	if len(sorted) > p.ExportCap {
		sorted = sorted[:p.ExportCap]
	}

	for start := 0; start < len(sorted); start += p.ExportBlock {
		end := start + p.ExportBlock
		if end > len(sorted) {
			end = len(sorted)
		}
		block := sorted[start:end]
		sort.SliceStable(block, func(i, j int) bool {
			return block[i].WinningRound > block[j].WinningRound
		})
	}
	return sorted
}

// sortByCategoryRank returns a stably sorted copy; ties keep discovery order.
func sortByCategoryRank(offers []ReconciledOffer) []ReconciledOffer {
	sorted := make([]ReconciledOffer, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CategoryRank < sorted[j].CategoryRank
	})
	return sorted
}
