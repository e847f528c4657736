package pipeline

import (
	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// IndexTransformer turns one year of engine output into sink records: the
// spell-duration grid and, when named, the exceedance-fraction grid.
type IndexTransformer struct {
	variable   string
	spell      string
	exceedance string
}

// NewTransformer creates an IndexTransformer. An empty exceedance name
// suppresses the exceedance record.
func NewTransformer(variable, spellIndex, exceedanceIndex string) *IndexTransformer {
	return &IndexTransformer{variable: variable, spell: spellIndex, exceedance: exceedanceIndex}
}

func (t *IndexTransformer) Transform(runID string, res domain.YearResult) []domain.AnnualIndex {
	out := []domain.AnnualIndex{
		domain.NewAnnualIndex(runID, t.variable, t.spell, res.Year, res.Spell),
	}
	if t.exceedance != "" {
		out = append(out, domain.NewAnnualIndex(runID, t.variable, t.exceedance, res.Year, res.Exceedance))
	}
	return out
}
