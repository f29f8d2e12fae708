package vehicles

import (
	"strings"
	"time"
)

// DocumentType identifies the kind of document a fact was extracted from.
type DocumentType string

// Document types.
const (
	DocumentRegistration DocumentType = "registration"
	DocumentInsurance    DocumentType = "insurance"
	DocumentCDL          DocumentType = "cdl"
	DocumentMedical      DocumentType = "medical"
	DocumentInspection   DocumentType = "inspection"
	DocumentOther        DocumentType = "other"
)

// String returns the document type as a string.
func (d DocumentType) String() string {
	return string(d)
}

// Valid reports whether d is a recognized document type.
func (d DocumentType) Valid() bool {
	switch d {
	case DocumentRegistration, DocumentInsurance, DocumentCDL,
		DocumentMedical, DocumentInspection, DocumentOther:
		return true
	}
	return false
}

// ParseDocumentType maps a loose spelling onto a DocumentType.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "registration", "vehicle_registration":
		return DocumentRegistration, true
	case "insurance", "insurance_card", "insurance_policy":
		return DocumentInsurance, true
	case "cdl", "license", "drivers_license", "driver_license":
		return DocumentCDL, true
	case "medical", "medical_certificate", "medical_card":
		return DocumentMedical, true
	case "inspection", "annual_inspection", "dot_inspection":
		return DocumentInspection, true
	case "other", "":
		return DocumentOther, true
	}
	return "", false
}

// DocumentTypes returns every recognized document type.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentRegistration, DocumentInsurance, DocumentCDL,
		DocumentMedical, DocumentInspection, DocumentOther,
	}
}

// Source records how an extraction entered the system. Unknown sources
// are kept verbatim.
type Source string

// Known sources.
const (
	SourceDocumentProcessing Source = "document_processing"
	SourceManualEntry        Source = "manual_entry"
	SourceBulkUpload         Source = "bulk_upload"
	SourceAPIImport          Source = "api_import"
)

// String returns the source as a string.
func (s Source) String() string {
	return string(s)
}

// DocumentExtraction is one immutable set of facts about one vehicle,
// extracted from one document or entry.
type DocumentExtraction struct {
	DocumentID           string       `json:"documentId" yaml:"documentId"`
	VIN                  VIN          `json:"vin" yaml:"vin"`
	DocumentType         DocumentType `json:"documentType" yaml:"documentType"`
	Source               Source       `json:"source" yaml:"source"`
	Fields               Fields       `json:"fields" yaml:"fields"`
	ExtractionConfidence float64      `json:"extractionConfidence" yaml:"extractionConfidence"`
	ReceivedAt           time.Time    `json:"receivedAt" yaml:"receivedAt"`
	FileName             string       `json:"fileName,omitempty" yaml:"fileName,omitempty"`
}

// Clone returns a deep copy of the extraction.
func (d DocumentExtraction) Clone() DocumentExtraction {
	d.Fields = d.Fields.Clone()
	return d
}

// Field returns the trimmed value of name and whether it is non-empty.
func (d DocumentExtraction) Field(name FieldName) (string, bool) {
	v := strings.TrimSpace(d.Fields[name])
	return v, v != ""
}
