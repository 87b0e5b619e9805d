// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

// NotesTable is the relational table holding raw notes and derived metadata.
const NotesTable = "clinical_notes"

// Column is a derived-metadata column on the notes table.
type Column struct {
	Name    string
	SQLType string
}

// SchemaColumnSet is the ordered set of columns added to the notes table
// before metadata is reconciled.
type SchemaColumnSet []Column

// Derived metadata column names.
const (
	ColumnTextLength      = "text_length"
	ColumnTotalEntities   = "total_entities"
	ColumnSemanticDensity = "semantic_density"
	ColumnMedications     = "medications"
	ColumnDiagnoses       = "diagnoses"
	ColumnSymptoms        = "symptoms"
	ColumnProcedure       = "procedure"
	ColumnBodyParts       = "body_parts"
)

// MetadataColumns returns the columns required by reconciliation.
func MetadataColumns() SchemaColumnSet {
	return SchemaColumnSet{
		{Name: ColumnTextLength, SQLType: "INTEGER"},
		{Name: ColumnTotalEntities, SQLType: "INTEGER"},
		{Name: ColumnSemanticDensity, SQLType: "DOUBLE PRECISION"},
		{Name: ColumnMedications, SQLType: "TEXT[]"},
		{Name: ColumnDiagnoses, SQLType: "TEXT[]"},
		{Name: ColumnSymptoms, SQLType: "TEXT[]"},
		{Name: ColumnProcedure, SQLType: "TEXT[]"},
		{Name: ColumnBodyParts, SQLType: "TEXT[]"},
	}
}

// Names returns the column names in order.
func (s SchemaColumnSet) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

var labelColumns = map[string]string{
	LabelMedication: ColumnMedications,
	LabelDiagnosis:  ColumnDiagnoses,
	LabelSymptom:    ColumnSymptoms,
	LabelProcedure:  ColumnProcedure,
	LabelBodyPart:   ColumnBodyParts,
}

// ColumnForLabel returns the array column that stores spans for label.
func ColumnForLabel(label string) (string, bool) {
	col, ok := labelColumns[label]
	return col, ok
}
