// Package models holds the structured records extracted from resumes and job descriptions.
package models

// Experience is a single position listed on a resume.
type Experience struct {
	JobTitle    string `json:"job_title,omitempty"`
	Company     string `json:"company,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is a single qualification listed on a resume.
type Education struct {
	Degree      string `json:"degree,omitempty"`
	Institution string `json:"institution,omitempty"`
	Years       string `json:"years,omitempty"`
}

// ResumeInfo is the structured view of a candidate resume.
type ResumeInfo struct {
	CandidateName string         `json:"candidate_name,omitempty"`
	Email         string         `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Skills        []string       `json:"skills"`
	Experience    []Experience   `json:"experience"`
	Education     []Education    `json:"education"`
	Misc          map[string]any `json:"misc,omitempty"`
}

// JobDescriptionInfo is the structured view of a job description.
type JobDescriptionInfo struct {
	JobTitle           string         `json:"job_title"`
	Company            string         `json:"company,omitempty"`
	Location           string         `json:"location,omitempty"`
	Summary            string         `json:"summary,omitempty"`
	Responsibilities   []string       `json:"responsibilities"`
	RequiredSkills     []string       `json:"required_skills"`
	PreferredSkills    []string       `json:"preferred_skills"`
	RequiredExperience string         `json:"required_experience,omitempty"`
	RequiredEducation  string         `json:"required_education,omitempty"`
	Misc               map[string]any `json:"misc,omitempty"`
}
