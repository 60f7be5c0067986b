package models

// Treatment type names seeded at startup
const (
	TreatmentPhysiotherapy  = "Physiotherapy"
	TreatmentChiropractic   = "Chiropractic"
	TreatmentOsteopathy     = "Osteopathy"
	TreatmentCuppingTherapy = "Cupping Therapy"
	TreatmentHijama         = "Hijama"
)

// Treatment represents a treatment type a customer can be assigned to
type Treatment struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:100;not null;uniqueIndex:uk_treatments_name" json:"name"`

	Customers []Customer `gorm:"many2many:customer_treatments" json:"-"`
}

func (Treatment) TableName() string {
	return "treatments"
}

// TreatmentFilter represents filter criteria for treatment queries
type TreatmentFilter struct {
	ID   *uint
	Name *string
}

// SeededTreatments returns the treatment catalogue ensured at application startup
func SeededTreatments() []string {
	return []string{
		TreatmentPhysiotherapy,
		TreatmentChiropractic,
		TreatmentOsteopathy,
		TreatmentCuppingTherapy,
		TreatmentHijama,
	}
}
