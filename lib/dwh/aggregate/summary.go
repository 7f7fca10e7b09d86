package aggregate

import (
	"fmt"
	"slices"
)

type Join struct {
	Table string `yaml:"table"`
	Alias string `yaml:"alias"`
	On    string `yaml:"on"`
	Left  bool   `yaml:"left,omitempty"`
}

// Contribution is one source of daily rows. It only declares the metrics it owns, every other metric is emitted as 0.
type Contribution struct {
	Name  string `yaml:"name"`
	Table string `yaml:"table"`
	Alias string `yaml:"alias"`
	Joins []Join `yaml:"joins,omitempty"`
	// Period is the SQL expression that is cast to the summary date.
	Period string `yaml:"period"`
	// Dimension is the SQL expression for the summary's dimension key.
	Dimension string `yaml:"dimension"`
	Where     string `yaml:"where,omitempty"`
	// Metrics maps a metric column onto its aggregate SQL expression.
	Metrics map[string]string `yaml:"metrics"`
}

type DailySummary struct {
	Name            string         `yaml:"name"`
	Table           string         `yaml:"table"`
	PeriodColumn    string         `yaml:"periodColumn"`
	DimensionColumn string         `yaml:"dimensionColumn"`
	Metrics         []string       `yaml:"metrics"`
	Contributions   []Contribution `yaml:"contributions"`
}

func (d DailySummary) Validate() error {
	if d.Name == "" || d.Table == "" || d.PeriodColumn == "" || d.DimensionColumn == "" {
		return fmt.Errorf("daily summary requires a name, a table, a period column and a dimension column: %q", d.Name)
	}

	if len(d.Metrics) == 0 || len(d.Contributions) == 0 {
		return fmt.Errorf("daily summary %q requires metrics and contributions", d.Name)
	}

	for _, contribution := range d.Contributions {
		if contribution.Table == "" || contribution.Alias == "" || contribution.Period == "" || contribution.Dimension == "" {
			return fmt.Errorf("daily summary %q has an incomplete contribution %q", d.Name, contribution.Name)
		}

		for metric := range contribution.Metrics {
			if !slices.Contains(d.Metrics, metric) {
				return fmt.Errorf("daily summary %q: contribution %q sets unknown metric %q", d.Name, contribution.Name, metric)
			}
		}
	}

	return nil
}

// ActiveCount counts the distinct days in a month on which [Indicator] was positive.
type ActiveCount struct {
	Column string `yaml:"column"`
	// Indicator is a daily column, empty means every day with a daily row counts.
	Indicator string `yaml:"indicator,omitempty"`
}

type MonthlySummary struct {
	Name string `yaml:"name"`
	// Table is the monthly table and Daily the daily table it rolls up.
	Table             string        `yaml:"table"`
	Daily             string        `yaml:"daily"`
	PeriodColumn      string        `yaml:"periodColumn"`
	DailyPeriodColumn string        `yaml:"dailyPeriodColumn"`
	DimensionColumn   string        `yaml:"dimensionColumn"`
	Sums              []string      `yaml:"sums"`
	ActiveCounts      []ActiveCount `yaml:"activeCounts,omitempty"`
}

func (m MonthlySummary) Validate() error {
	if m.Name == "" || m.Table == "" || m.Daily == "" {
		return fmt.Errorf("monthly summary requires a name, a table and a daily table: %q", m.Name)
	}

	if m.PeriodColumn == "" || m.DailyPeriodColumn == "" || m.DimensionColumn == "" {
		return fmt.Errorf("monthly summary %q requires period and dimension columns", m.Name)
	}

	if len(m.Sums) == 0 && len(m.ActiveCounts) == 0 {
		return fmt.Errorf("monthly summary %q has no metrics", m.Name)
	}

	return nil
}

// metricColumns lists every monthly metric column, sums first.
func (m MonthlySummary) metricColumns() []string {
	columns := slices.Clone(m.Sums)
	for _, activeCount := range m.ActiveCounts {
		columns = append(columns, activeCount.Column)
	}
	return columns
}
