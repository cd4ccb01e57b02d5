package buildofferexport

import "college-predictor/internal/cutoff"

type Input struct {
	Rank     int    `json:"rank"`
	Category string `json:"category"`
	Group    string `json:"group,omitempty"`
}

// Output carries the export set in document order.
type Output struct {
	Offers []cutoff.ReconciledOffer `json:"offers"`
	Count  int                      `json:"count"`
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"rank": {"type": "integer"},
		"category": {"type": "string"},
		"group": {"type": ["string", "null"]}
	},
	"required": ["rank", "category"]
}`
