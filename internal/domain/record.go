package domain

import "time"

// NoDataSentinel is what the analyzer returns for a field it found nothing for.
const NoDataSentinel = "N/A"

// Field names one attribute of a clinical note.
type Field string

const (
	FieldPatientName         Field = "patientName"
	FieldAge                 Field = "age"
	FieldGender              Field = "gender"
	FieldSymptoms            Field = "symptoms"
	FieldMedicalHistory      Field = "medicalHistory"
	FieldDiagnosis           Field = "diagnosis"
	FieldTreatmentPlan       Field = "treatmentPlan"
	FieldBloodPressure       Field = "bloodPressure"
	FieldHeartRate           Field = "heartRate"
	FieldTemperature         Field = "temperature"
	FieldRespiratoryRate     Field = "respiratoryRate"
	FieldOxygenSaturation    Field = "oxygenSaturation"
	FieldWeight              Field = "weight"
	FieldHeight              Field = "height"
	FieldTranscript          Field = "transcript"
	FieldFormattedTranscript Field = "formattedTranscript"
)

// AllFields lists every note field in form order.
var AllFields = []Field{
	FieldPatientName,
	FieldAge,
	FieldGender,
	FieldSymptoms,
	FieldMedicalHistory,
	FieldDiagnosis,
	FieldTreatmentPlan,
	FieldBloodPressure,
	FieldHeartRate,
	FieldTemperature,
	FieldRespiratoryRate,
	FieldOxygenSaturation,
	FieldWeight,
	FieldHeight,
	FieldTranscript,
	FieldFormattedTranscript,
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, known := range AllFields {
		if known == f {
			return true
		}
	}
	return false
}

// Fields is the flat set of named string attributes shared by notes and
// extraction results. An empty string means "no information".
type Fields struct {
	PatientName         string `json:"patientName"`
	Age                 string `json:"age"`
	Gender              string `json:"gender"`
	Symptoms            string `json:"symptoms"`
	MedicalHistory      string `json:"medicalHistory"`
	Diagnosis           string `json:"diagnosis"`
	TreatmentPlan       string `json:"treatmentPlan"`
	BloodPressure       string `json:"bloodPressure"`
	HeartRate           string `json:"heartRate"`
	Temperature         string `json:"temperature"`
	RespiratoryRate     string `json:"respiratoryRate"`
	OxygenSaturation    string `json:"oxygenSaturation"`
	Weight              string `json:"weight"`
	Height              string `json:"height"`
	Transcript          string `json:"transcript"`
	FormattedTranscript string `json:"formattedTranscript"`
}

// Get returns the value stored for field, or "" for an unknown field.
func (f *Fields) Get(field Field) string {
	if p := f.slot(field); p != nil {
		return *p
	}
	return ""
}

// Set stores value for field. It reports false for an unknown field.
func (f *Fields) Set(field Field, value string) bool {
	p := f.slot(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (f *Fields) slot(field Field) *string {
	switch field {
	case FieldPatientName:
		return &f.PatientName
	case FieldAge:
		return &f.Age
	case FieldGender:
		return &f.Gender
	case FieldSymptoms:
		return &f.Symptoms
	case FieldMedicalHistory:
		return &f.MedicalHistory
	case FieldDiagnosis:
		return &f.Diagnosis
	case FieldTreatmentPlan:
		return &f.TreatmentPlan
	case FieldBloodPressure:
		return &f.BloodPressure
	case FieldHeartRate:
		return &f.HeartRate
	case FieldTemperature:
		return &f.Temperature
	case FieldRespiratoryRate:
		return &f.RespiratoryRate
	case FieldOxygenSaturation:
		return &f.OxygenSaturation
	case FieldWeight:
		return &f.Weight
	case FieldHeight:
		return &f.Height
	case FieldTranscript:
		return &f.Transcript
	case FieldFormattedTranscript:
		return &f.FormattedTranscript
	default:
		return nil
	}
}

// ExtractionResult is one analysis pass's opinion about a transcript.
// Any field may be empty or carry NoDataSentinel.
type ExtractionResult struct {
	Fields
}

// Record is a persisted clinical note.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Fields
}
