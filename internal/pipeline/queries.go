package pipeline

// categoryTemplates maps challenge categories to their search queries.
var categoryTemplates = map[string][]string{
	"sanctions/export-controls": {
		"UK EU export controls update sanctions trade impact",
		"UK EU dual-use export controls restrictions",
	},
	"tariffs/trade remedies": {
		"UK EU tariffs antidumping countervailing duties",
		"EU trade remedies measures affecting imports",
	},
	"customs/border processes": {
		"UK EU customs border checks delays",
		"EU customs procedures changes impact on UK trade",
	},
	"shipping/logistics/ports": {
		"UK EU ports congestion shipping delays",
		"freight logistics disruptions Europe ports",
	},
	"insurance/freight rates": {
		"marine insurance costs Europe shipping",
		"freight rate volatility Europe UK",
	},
	"energy inputs": {
		"energy prices impact on manufacturing Europe UK trade",
		"gas supply risk Europe industrial costs",
	},
	"FX/payments": {
		"GBP EUR volatility trade payments risk",
		"cross-border payment frictions UK EU trade",
	},
	"supply-chain disruptions": {
		"supply chain disruptions affecting UK EU imports",
		"critical components shortages Europe manufacturing",
	},
	"ESG/CBAM-type regulation": {
		"EU CBAM compliance requirements UK exporters",
		"ESG regulation supply chain due diligence EU",
	},
	"labor/driver shortages": {
		"truck driver shortages Europe UK logistics",
		"labor shortages ports logistics Europe",
	},
	"geopolitical conflict risks": {
		"geopolitical conflict impact on European trade routes",
		"trade disruption risk from conflict affecting UK EU",
	},
}

// categoryOrder fixes iteration order so query generation is deterministic.
var categoryOrder = []string{
	"sanctions/export-controls",
	"tariffs/trade remedies",
	"customs/border processes",
	"shipping/logistics/ports",
	"insurance/freight rates",
	"energy inputs",
	"FX/payments",
	"supply-chain disruptions",
	"ESG/CBAM-type regulation",
	"labor/driver shortages",
	"geopolitical conflict risks",
}

// Categories returns every known challenge category.
func Categories() []string {
	out := make([]string, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// GenerateQueries expands categories into search queries. A nil or empty
// slice selects every known category; unknown categories contribute
// nothing.
func GenerateQueries(categories []string) []string {
	if len(categories) == 0 {
		categories = categoryOrder
	}
	var queries []string
	for _, cat := range categories {
		queries = append(queries, categoryTemplates[cat]...)
	}
	return queries
}
