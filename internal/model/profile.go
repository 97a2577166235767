package model

import "strings"

// Profile is the detailed participant form submitted with a registration.
// The ledger stores it opaquely; only presence of the required fields is
// checked.
type Profile struct {
	FullName                 string `json:"fullName"`
	Email                    string `json:"email"`
	Phone                    string `json:"phone"`
	DateOfBirth              string `json:"dateOfBirth"`
	Gender                   string `json:"gender"`
	Address                  string `json:"address"`
	City                     string `json:"city"`
	State                    string `json:"state"`
	ZipCode                  string `json:"zipCode"`
	EmergencyContactName     string `json:"emergencyContactName"`
	EmergencyContactPhone    string `json:"emergencyContactPhone"`
	EmergencyContactRelation string `json:"emergencyContactRelation"`
	AgreeTerms               bool   `json:"agreeTerms"`

	// sports experience, all optional
	ExperienceLevel     string `json:"experienceLevel,omitempty"`
	YearsOfExperience   int    `json:"yearsOfExperience,omitempty"`
	PreviousTournaments string `json:"previousTournaments,omitempty"`
	TeamName            string `json:"teamName,omitempty"`
	MedicalConditions   string `json:"medicalConditions,omitempty"`
	TShirtSize          string `json:"tShirtSize,omitempty"`
}

// MissingFields returns the JSON names of required fields that are blank,
// plus "agreeTerms" when the terms were not accepted.
func (p Profile) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"fullName", p.FullName},
		{"email", p.Email},
		{"phone", p.Phone},
		{"dateOfBirth", p.DateOfBirth},
		{"gender", p.Gender},
		{"address", p.Address},
		{"city", p.City},
		{"state", p.State},
		{"zipCode", p.ZipCode},
		{"emergencyContactName", p.EmergencyContactName},
		{"emergencyContactPhone", p.EmergencyContactPhone},
		{"emergencyContactRelation", p.EmergencyContactRelation},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if !p.AgreeTerms {
		missing = append(missing, "agreeTerms")
	}
	return missing
}
