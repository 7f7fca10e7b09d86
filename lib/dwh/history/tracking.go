package history

import "fmt"

// Tracking describes a Type-2 history table kept alongside a current warehouse table.
type Tracking struct {
	Name string `yaml:"name"`
	// Current is the warehouse table holding one row per entity.
	Current string `yaml:"current"`
	History string `yaml:"history"`
	// SurrogateKey joins the history rows to the current rows and has the same name in both tables.
	SurrogateKey string `yaml:"surrogateKey"`
	// Attributes are the tracked columns, named the same in both tables.
	Attributes []string `yaml:"attributes"`
	// AllowOutOfOrder disables the check that refuses to historize a batch older than existing history.
	AllowOutOfOrder bool `yaml:"allowOutOfOrder,omitempty"`
}

func (t Tracking) Validate() error {
	if t.Name == "" || t.Current == "" || t.History == "" || t.SurrogateKey == "" {
		return fmt.Errorf("history tracking requires a name, a current table, a history table and a surrogate key: %q", t.Name)
	}

	if len(t.Attributes) == 0 {
		return fmt.Errorf("history tracking %q has no tracked attributes", t.Name)
	}

	return nil
}
