package export

// Row is an ordered list of values matching a Schema positionally.
type Row []Value

// Dataset is a fully materialized result set, held only for encoders that
// need every row before producing output.
type Dataset struct {
	Schema *Schema
	Rows   []Row
}

// NewDataset creates an empty Dataset for the schema.
func NewDataset(schema *Schema) *Dataset {
	return &Dataset{Schema: schema}
}

// Append adds a row after checking it against the schema.
func (d *Dataset) Append(row Row) error {
	if err := d.Schema.Check(row); err != nil {
		return err
	}
	d.Rows = append(d.Rows, row)
	return nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }
