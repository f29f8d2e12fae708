package vehicles

import "time"

// FieldSet is a typed set of extracted fields. Each document type has its
// own implementation so the attributes a document may carry are explicit.
type FieldSet interface {
	DocumentType() DocumentType
	Fields() Fields
}

// RegistrationFields are extracted from a vehicle registration.
type RegistrationFields struct {
	Make               string `json:"make,omitempty" yaml:"make,omitempty"`
	Model              string `json:"model,omitempty" yaml:"model,omitempty"`
	Year               string `json:"year,omitempty" yaml:"year,omitempty"`
	LicensePlate       string `json:"licensePlate,omitempty" yaml:"licensePlate,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty" yaml:"registrationNumber,omitempty"`
	RegistrationState  string `json:"registrationState,omitempty" yaml:"registrationState,omitempty"`
	OwnerName          string `json:"ownerName,omitempty" yaml:"ownerName,omitempty"`
	ExpirationDate     string `json:"registrationExpirationDate,omitempty" yaml:"registrationExpirationDate,omitempty"`
}

// DocumentType implements FieldSet.
func (RegistrationFields) DocumentType() DocumentType { return DocumentRegistration }

// Fields implements FieldSet.
func (r RegistrationFields) Fields() Fields {
	return compact(Fields{
		FieldMake:                       r.Make,
		FieldModel:                      r.Model,
		FieldYear:                       r.Year,
		FieldLicensePlate:               r.LicensePlate,
		FieldRegistrationNumber:         r.RegistrationNumber,
		FieldRegistrationState:          r.RegistrationState,
		FieldOwnerName:                  r.OwnerName,
		FieldRegistrationExpirationDate: r.ExpirationDate,
	})
}

// InsuranceFields are extracted from an insurance card or policy.
type InsuranceFields struct {
	Make           string `json:"make,omitempty" yaml:"make,omitempty"`
	Model          string `json:"model,omitempty" yaml:"model,omitempty"`
	Year           string `json:"year,omitempty" yaml:"year,omitempty"`
	Carrier        string `json:"insuranceCarrier,omitempty" yaml:"insuranceCarrier,omitempty"`
	PolicyNumber   string `json:"policyNumber,omitempty" yaml:"policyNumber,omitempty"`
	CoverageAmount string `json:"coverageAmount,omitempty" yaml:"coverageAmount,omitempty"`
	EffectiveDate  string `json:"insuranceEffectiveDate,omitempty" yaml:"insuranceEffectiveDate,omitempty"`
	ExpirationDate string `json:"insuranceExpirationDate,omitempty" yaml:"insuranceExpirationDate,omitempty"`
}

// DocumentType implements FieldSet.
func (InsuranceFields) DocumentType() DocumentType { return DocumentInsurance }

// Fields implements FieldSet.
func (i InsuranceFields) Fields() Fields {
	return compact(Fields{
		FieldMake:                    i.Make,
		FieldModel:                   i.Model,
		FieldYear:                    i.Year,
		FieldInsuranceCarrier:        i.Carrier,
		FieldPolicyNumber:            i.PolicyNumber,
		FieldCoverageAmount:          i.CoverageAmount,
		FieldInsuranceEffectiveDate:  i.EffectiveDate,
		FieldInsuranceExpirationDate: i.ExpirationDate,
	})
}

// CDLFields are extracted from a commercial driver's license.
type CDLFields struct {
	DriverName     string `json:"driverName,omitempty" yaml:"driverName,omitempty"`
	LicenseNumber  string `json:"licenseNumber,omitempty" yaml:"licenseNumber,omitempty"`
	LicenseClass   string `json:"licenseClass,omitempty" yaml:"licenseClass,omitempty"`
	LicenseState   string `json:"licenseState,omitempty" yaml:"licenseState,omitempty"`
	ExpirationDate string `json:"licenseExpirationDate,omitempty" yaml:"licenseExpirationDate,omitempty"`
}

// DocumentType implements FieldSet.
func (CDLFields) DocumentType() DocumentType { return DocumentCDL }

// Fields implements FieldSet.
func (c CDLFields) Fields() Fields {
	return compact(Fields{
		FieldDriverName:            c.DriverName,
		FieldLicenseNumber:         c.LicenseNumber,
		FieldLicenseClass:          c.LicenseClass,
		FieldLicenseState:          c.LicenseState,
		FieldLicenseExpirationDate: c.ExpirationDate,
	})
}

// MedicalFields are extracted from a DOT medical examiner's certificate.
type MedicalFields struct {
	DriverName     string `json:"driverName,omitempty" yaml:"driverName,omitempty"`
	ExaminerName   string `json:"examinerName,omitempty" yaml:"examinerName,omitempty"`
	ExpirationDate string `json:"medicalCertificateExpirationDate,omitempty" yaml:"medicalCertificateExpirationDate,omitempty"`
}

// DocumentType implements FieldSet.
func (MedicalFields) DocumentType() DocumentType { return DocumentMedical }

// Fields implements FieldSet.
func (m MedicalFields) Fields() Fields {
	return compact(Fields{
		FieldDriverName:                       m.DriverName,
		FieldExaminerName:                     m.ExaminerName,
		FieldMedicalCertificateExpirationDate: m.ExpirationDate,
	})
}

// InspectionFields are extracted from a periodic vehicle inspection report.
type InspectionFields struct {
	Make           string `json:"make,omitempty" yaml:"make,omitempty"`
	Model          string `json:"model,omitempty" yaml:"model,omitempty"`
	Year           string `json:"year,omitempty" yaml:"year,omitempty"`
	LicensePlate   string `json:"licensePlate,omitempty" yaml:"licensePlate,omitempty"`
	InspectionDate string `json:"inspectionDate,omitempty" yaml:"inspectionDate,omitempty"`
	ExpirationDate string `json:"inspectionExpirationDate,omitempty" yaml:"inspectionExpirationDate,omitempty"`
	Result         string `json:"inspectionResult,omitempty" yaml:"inspectionResult,omitempty"`
	InspectorName  string `json:"inspectorName,omitempty" yaml:"inspectorName,omitempty"`
}

// DocumentType implements FieldSet.
func (InspectionFields) DocumentType() DocumentType { return DocumentInspection }

// Fields implements FieldSet.
func (i InspectionFields) Fields() Fields {
	return compact(Fields{
		FieldMake:                     i.Make,
		FieldModel:                    i.Model,
		FieldYear:                     i.Year,
		FieldLicensePlate:             i.LicensePlate,
		FieldInspectionDate:           i.InspectionDate,
		FieldInspectionExpirationDate: i.ExpirationDate,
		FieldInspectionResult:         i.Result,
		FieldInspectorName:            i.InspectorName,
	})
}

// GenericFields carries untyped attributes, e.g. a manual entry or a bulk
// upload row.
type GenericFields Fields

// DocumentType implements FieldSet.
func (GenericFields) DocumentType() DocumentType { return DocumentOther }

// Fields implements FieldSet.
func (g GenericFields) Fields() Fields {
	return compact(Fields(g).Clone())
}

// NewExtraction builds an extraction whose document type is taken from set.
func NewExtraction(documentID string, vin VIN, set FieldSet, source Source, confidence float64, receivedAt time.Time) DocumentExtraction {
	return DocumentExtraction{
		DocumentID:           documentID,
		VIN:                  vin,
		DocumentType:         set.DocumentType(),
		Source:               source,
		Fields:               set.Fields(),
		ExtractionConfidence: confidence,
		ReceivedAt:           receivedAt,
	}
}

func compact(f Fields) Fields {
	for k, v := range f {
		if v == "" {
			delete(f, k)
		}
	}
	return f
}
