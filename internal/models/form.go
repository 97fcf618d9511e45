package models

// FormField describes one field of a form
type FormField struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

// Form is the schema a record was submitted against
type Form struct {
	ID     string      `json:"id" yaml:"id"`
	Title  string      `json:"title" yaml:"title"`
	Fields []FormField `json:"fields" yaml:"fields"`
}

// Field returns the field definition for key, or nil
func (f *Form) Field(key string) *FormField {
	if f == nil {
		return nil
	}
	for i := range f.Fields {
		if f.Fields[i].Key == key {
			return &f.Fields[i]
		}
	}
	return nil
}
