package catalog

import (
	"fmt"

	"github.com/artie-labs/warehouse/lib/dwh/aggregate"
	"github.com/artie-labs/warehouse/lib/dwh/history"
	"github.com/artie-labs/warehouse/lib/dwh/merge"
)

// Catalog lists every warehouse table the pipeline maintains.
// Entities are merged in the order they are listed, so a table must come after every table it references.
type Catalog struct {
	Entities         []merge.Entity             `yaml:"entities"`
	Histories        []history.Tracking         `yaml:"histories,omitempty"`
	DailySummaries   []aggregate.DailySummary   `yaml:"dailySummaries,omitempty"`
	MonthlySummaries []aggregate.MonthlySummary `yaml:"monthlySummaries,omitempty"`
}

func (c Catalog) Validate() error {
	if len(c.Entities) == 0 {
		return fmt.Errorf("catalog has no entities")
	}

	merged := make(map[string]bool)
	for _, entity := range c.Entities {
		if err := entity.Validate(); err != nil {
			return err
		}

		if merged[entity.Target] {
			return fmt.Errorf("entity %q is listed more than once", entity.Target)
		}

		for _, fk := range entity.ForeignKeys {
			if !entity.IsSelfReference(fk) && !merged[fk.References] {
				return fmt.Errorf("entity %q references %q, which must be listed before it", entity.Name, fk.References)
			}
		}

		merged[entity.Target] = true
	}

	for _, tracking := range c.Histories {
		if err := tracking.Validate(); err != nil {
			return err
		}

		if !merged[tracking.Current] {
			return fmt.Errorf("history %q tracks %q, which is not a catalog entity", tracking.Name, tracking.Current)
		}
	}

	dailies := make(map[string]bool)
	for _, daily := range c.DailySummaries {
		if err := daily.Validate(); err != nil {
			return err
		}
		dailies[daily.Table] = true
	}

	for _, monthly := range c.MonthlySummaries {
		if err := monthly.Validate(); err != nil {
			return err
		}

		if !dailies[monthly.Daily] {
			return fmt.Errorf("monthly summary %q rolls up %q, which is not a daily summary", monthly.Name, monthly.Daily)
		}
	}

	return nil
}
