package vehicles

// FieldName names a vehicle attribute that documents can populate.
type FieldName string

// String returns the field name as a string.
func (f FieldName) String() string {
	return string(f)
}

// Identity fields.
const (
	FieldVIN   FieldName = "vin"
	FieldMake  FieldName = "make"
	FieldModel FieldName = "model"
	FieldYear  FieldName = "year"
)

// Descriptive fields.
const (
	FieldLicensePlate       FieldName = "licensePlate"
	FieldColor              FieldName = "color"
	FieldTruckNumber        FieldName = "truckNumber"
	FieldRegistrationNumber FieldName = "registrationNumber"
	FieldRegistrationState  FieldName = "registrationState"
	FieldOwnerName          FieldName = "ownerName"
	FieldInsuranceCarrier   FieldName = "insuranceCarrier"
	FieldPolicyNumber       FieldName = "policyNumber"
	FieldCoverageAmount     FieldName = "coverageAmount"
	FieldDriverName         FieldName = "driverName"
	FieldLicenseNumber      FieldName = "licenseNumber"
	FieldLicenseClass       FieldName = "licenseClass"
	FieldLicenseState       FieldName = "licenseState"
	FieldExaminerName       FieldName = "examinerName"
	FieldInspectionResult   FieldName = "inspectionResult"
	FieldInspectorName      FieldName = "inspectorName"
)

// Date fields.
const (
	FieldRegistrationExpirationDate       FieldName = "registrationExpirationDate"
	FieldInsuranceEffectiveDate           FieldName = "insuranceEffectiveDate"
	FieldInsuranceExpirationDate          FieldName = "insuranceExpirationDate"
	FieldLicenseExpirationDate            FieldName = "licenseExpirationDate"
	FieldMedicalCertificateExpirationDate FieldName = "medicalCertificateExpirationDate"
	FieldInspectionDate                   FieldName = "inspectionDate"
	FieldInspectionExpirationDate         FieldName = "inspectionExpirationDate"
)

// FieldKind classifies how a field is merged.
type FieldKind int

// Field kinds.
const (
	KindDescriptive FieldKind = iota
	KindIdentity
	KindDate
)

// String returns a readable kind name.
func (k FieldKind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindDate:
		return "date"
	default:
		return "descriptive"
	}
}

var fieldKinds = map[FieldName]FieldKind{
	FieldVIN:   KindIdentity,
	FieldMake:  KindIdentity,
	FieldModel: KindIdentity,
	FieldYear:  KindIdentity,

	FieldRegistrationExpirationDate:       KindDate,
	FieldInsuranceEffectiveDate:           KindDate,
	FieldInsuranceExpirationDate:          KindDate,
	FieldLicenseExpirationDate:            KindDate,
	FieldMedicalCertificateExpirationDate: KindDate,
	FieldInspectionDate:                   KindDate,
	FieldInspectionExpirationDate:         KindDate,
}

// Kind returns the merge kind of the field. Unknown fields are descriptive.
func (f FieldName) Kind() FieldKind {
	return fieldKinds[f]
}

// IsIdentity reports whether f is one of vin, make, model or year.
func (f FieldName) IsIdentity() bool {
	return f.Kind() == KindIdentity
}

// IsDate reports whether f holds a calendar date.
func (f FieldName) IsDate() bool {
	return f.Kind() == KindDate
}

// IdentityFields lists the fields a vehicle needs to leave the PARTIAL state.
func IdentityFields() []FieldName {
	return []FieldName{FieldMake, FieldModel, FieldYear}
}

// Fields is a flat attribute map carried by an extraction.
type Fields map[FieldName]string

// Clone returns a copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
