package ai

// LabelDescriptions explains each clinical label to the extraction model.
// Keys match core.Labels.
var LabelDescriptions = map[string]string{
	"medication": "drug names, brand names, drug classes and dosage forms (e.g. ibuprofen, metformin 500 mg, insulin)",
	"diagnosis":  "diseases, disorders, syndromes and confirmed clinical findings (e.g. type 2 diabetes, pneumonia)",
	"symptom":    "complaints and signs reported by or observed in the patient (e.g. headache, shortness of breath)",
	"procedure":  "tests, imaging, surgeries and therapeutic interventions (e.g. ct scan, appendectomy, dialysis)",
	"body_part":  "anatomical locations and organs (e.g. left knee, abdomen, coronary artery)",
}
