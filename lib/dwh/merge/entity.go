package merge

import (
	"fmt"
	"slices"

	"github.com/artie-labs/warehouse/lib/config/constants"
)

// Column maps a staging column onto its warehouse column.
type Column struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// ForeignKey resolves a staging natural key into the surrogate key of another warehouse table.
type ForeignKey struct {
	// Column is the warehouse column that receives the surrogate key.
	Column string `yaml:"column"`
	// SourceColumn is the staging column that holds the referenced natural key.
	SourceColumn string `yaml:"sourceColumn"`
	// References is the referenced warehouse table. Empty means the entity references itself.
	References             string `yaml:"references,omitempty"`
	ReferencedKey          string `yaml:"referencedKey"`
	ReferencedSurrogateKey string `yaml:"referencedSurrogateKey"`
}

// Entity describes how one staging table is merged into its warehouse table.
type Entity struct {
	Name         string       `yaml:"name"`
	Source       string       `yaml:"source"`
	Target       string       `yaml:"target"`
	NaturalKeys  []Column     `yaml:"naturalKeys"`
	Attributes   []Column     `yaml:"attributes"`
	SurrogateKey string       `yaml:"surrogateKey,omitempty"`
	ForeignKeys  []ForeignKey `yaml:"foreignKeys,omitempty"`

	SourceCreateTimestamp string `yaml:"sourceCreateTimestamp,omitempty"`
	SourceUpdateTimestamp string `yaml:"sourceUpdateTimestamp,omitempty"`
}

func (e Entity) IsSelfReference(fk ForeignKey) bool {
	return fk.References == "" || fk.References == e.Target
}

func (e Entity) sourceCreateTimestamp() string {
	if e.SourceCreateTimestamp == "" {
		return constants.SourceCreateTimestamp
	}
	return e.SourceCreateTimestamp
}

func (e Entity) sourceUpdateTimestamp() string {
	if e.SourceUpdateTimestamp == "" {
		return constants.SourceUpdateTimestamp
	}
	return e.SourceUpdateTimestamp
}

// targetColumnFor returns the warehouse column that mirrors the staging column [source].
func (e Entity) targetColumnFor(source string) (string, bool) {
	for _, column := range slices.Concat(e.NaturalKeys, e.Attributes) {
		if column.Source == source {
			return column.Target, true
		}
	}
	return "", false
}

func (e Entity) Validate() error {
	if e.Name == "" || e.Source == "" || e.Target == "" {
		return fmt.Errorf("entity requires a name, a source and a target: %q", e.Name)
	}

	if len(e.NaturalKeys) == 0 {
		return fmt.Errorf("entity %q has no natural keys", e.Name)
	}

	for _, column := range slices.Concat(e.NaturalKeys, e.Attributes) {
		if column.Source == "" || column.Target == "" {
			return fmt.Errorf("entity %q has a column without a source or target", e.Name)
		}
	}

	for _, fk := range e.ForeignKeys {
		if fk.Column == "" || fk.SourceColumn == "" || fk.ReferencedKey == "" || fk.ReferencedSurrogateKey == "" {
			return fmt.Errorf("entity %q has an incomplete foreign key %q", e.Name, fk.Column)
		}

		if e.IsSelfReference(fk) {
			if _, ok := e.targetColumnFor(fk.SourceColumn); !ok {
				return fmt.Errorf("entity %q references itself through %q, which is not mirrored into the warehouse", e.Name, fk.SourceColumn)
			}
		}
	}

	return nil
}
