package model

// PropertyEntry is one named material attribute on the board.
type PropertyEntry struct {
	Key         string
	DisplayName string
	Value       string
	Unit        string
	Editable    bool
}

// Interpretation is a property/value pair recognized by the interpretation service.
// Key may be empty, in which case the board derives one from DisplayName.
type Interpretation struct {
	Key         string
	DisplayName string
	Value       string
	Unit        string
}
