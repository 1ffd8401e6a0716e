package main

import (
	"fmt"
	"strings"
	"time"

	"medscribe/internal/domain"
)

const shortIDLength = 8

var fieldLabels = map[domain.Field]string{
	domain.FieldPatientName:         "Patient name",
	domain.FieldAge:                 "Age",
	domain.FieldGender:              "Gender",
	domain.FieldSymptoms:            "Symptoms",
	domain.FieldMedicalHistory:      "Medical history",
	domain.FieldDiagnosis:           "Diagnosis",
	domain.FieldTreatmentPlan:       "Treatment plan",
	domain.FieldBloodPressure:       "Blood pressure",
	domain.FieldHeartRate:           "Heart rate",
	domain.FieldTemperature:         "Temperature",
	domain.FieldRespiratoryRate:     "Respiratory rate",
	domain.FieldOxygenSaturation:    "Oxygen saturation",
	domain.FieldWeight:              "Weight",
	domain.FieldHeight:              "Height",
	domain.FieldTranscript:          "Transcript",
	domain.FieldFormattedTranscript: "Formatted transcript",
}

func isTranscriptField(f domain.Field) bool {
	return f == domain.FieldTranscript || f == domain.FieldFormattedTranscript
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func renderList(records []domain.Record, loc *time.Location) string {
	if len(records) == 0 {
		return dimStyle.Render("No saved notes.") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d saved notes", len(records))))
	b.WriteString("\n")
	for _, r := range records {
		name := r.PatientName
		if name == "" {
			name = "Untitled"
		}
		fmt.Fprintf(&b, "%s  %s  %s",
			dimStyle.Render(shortID(r.ID)),
			r.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			name)
		if r.Diagnosis != "" {
			b.WriteString("  ")
			b.WriteString(dimStyle.Render(r.Diagnosis))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderFields prints one labelled line per clinical field followed by the
// transcripts, if any, as wrapped blocks.
func renderFields(title string, fields domain.Fields) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	for _, f := range domain.AllFields {
		if isTranscriptField(f) {
			continue
		}
		value := fields.Get(f)
		if value == "" {
			value = dimStyle.Render("-")
		}
		b.WriteString(labelStyle.Render(fieldLabels[f]))
		b.WriteString(value)
		b.WriteString("\n")
	}

	for _, f := range []domain.Field{domain.FieldTranscript, domain.FieldFormattedTranscript} {
		value := fields.Get(f)
		if value == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fieldLabels[f]))
		b.WriteString("\n")
		b.WriteString(transcriptStyle.Render(value))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRecord(r domain.Record, loc *time.Location) string {
	title := fmt.Sprintf("Note %s  %s", r.ID, r.CreatedAt.In(loc).Format("2006-01-02 15:04"))
	return renderFields(title, r.Fields)
}

func renderError(err error) string {
	return errorStyle.Render("error: ") + err.Error() + "\n"
}
