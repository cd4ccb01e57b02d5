package resolveofferpage

import "college-predictor/internal/cutoff"

type Input struct {
	Rank     int    `json:"rank"`
	Category string `json:"category"`
	Group    string `json:"group,omitempty"`
	Page     *int   `json:"page,omitempty"`
}

type Output struct {
	Offers        []cutoff.ReconciledOffer `json:"offers"`
	PageNumber    int                      `json:"pageNumber"`
	TotalPages    int                      `json:"totalPages"`
	MatchingCount int                      `json:"matchingCount"`
}

// inputSchema checks variable types only; range checks stay in the service
// so jobs and HTTP callers see the same error codes.
const inputSchema = `{
	"type": "object",
	"properties": {
		"rank": {"type": "integer"},
		"category": {"type": "string"},
		"group": {"type": ["string", "null"]},
		"page": {"type": "integer"}
	},
	"required": ["rank", "category"]
}`
