package portfolio

import (
	"encoding/json"
	"fmt"
)

// ResumeSectionType tags the variant held by a ResumeSection.
type ResumeSectionType string

// Resume section variants.
const (
	ResumeSummary        ResumeSectionType = "summary"
	ResumeExperience     ResumeSectionType = "experience"
	ResumeEducation      ResumeSectionType = "education"
	ResumeSkills         ResumeSectionType = "skills"
	ResumeProjects       ResumeSectionType = "projects"
	ResumeCertifications ResumeSectionType = "certifications"
	ResumeLeadership     ResumeSectionType = "leadership"
)

// Resume is the typed view of the "resume" record.
type Resume struct {
	Sections    []ResumeSection `json:"sections"`
	DownloadURL *string         `json:"downloadUrl,omitempty"`
}

// ResumeSection is a tagged variant; only the fields matching Type are set.
type ResumeSection struct {
	ID    json.Number       `json:"id,omitempty"`
	Title string            `json:"title"`
	Type  ResumeSectionType `json:"type"`

	// summary
	Content string `json:"content,omitempty"`

	// experience, education, projects, certifications, leadership
	Experience     []ExperienceItem    `json:"-"`
	Education      []EducationItem     `json:"-"`
	Projects       []ProjectItem       `json:"-"`
	Certifications []CertificationItem `json:"-"`
	Leadership     []LeadershipItem    `json:"-"`

	// skills
	Categories []SkillCategory `json:"categories,omitempty"`
}

// ExperienceItem is one position on the experience timeline.
type ExperienceItem struct {
	ID           json.Number `json:"id,omitempty"`
	Position     string      `json:"position"`
	Company      string      `json:"company"`
	Location     string      `json:"location,omitempty"`
	Duration     string      `json:"duration,omitempty"`
	Description  string      `json:"description,omitempty"`
	Achievements []string    `json:"achievements,omitempty"`
}

// EducationItem is one degree.
type EducationItem struct {
	ID              json.Number `json:"id,omitempty"`
	Degree          string      `json:"degree"`
	Institution     string      `json:"institution"`
	Location        string      `json:"location,omitempty"`
	Duration        string      `json:"duration,omitempty"`
	GPA             string      `json:"gpa,omitempty"`
	RelevantCourses []string    `json:"relevant_courses,omitempty"`
}

// SkillCategory groups related skills.
type SkillCategory struct {
	ID       json.Number `json:"id,omitempty"`
	Category string      `json:"category"`
	Icon     string      `json:"icon,omitempty"`
	Color    string      `json:"color,omitempty"`
	Skills   []Skill     `json:"skills"`
}

// Skill is a single named skill.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProjectItem is a resume project entry.
type ProjectItem struct {
	ID           json.Number `json:"id,omitempty"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Technologies []string    `json:"technologies,omitempty"`
	Duration     string      `json:"duration,omitempty"`
	Highlights   []string    `json:"highlights,omitempty"`
	GithubURL    string      `json:"githubUrl,omitempty"`
	LiveURL      string      `json:"liveUrl,omitempty"`
}

// CertificationItem is a resume certification entry.
type CertificationItem struct {
	ID           json.Number `json:"id,omitempty"`
	Name         string      `json:"name"`
	Issuer       string      `json:"issuer,omitempty"`
	Date         string      `json:"date,omitempty"`
	CredentialID string      `json:"credentialId,omitempty"`
	Description  string      `json:"description,omitempty"`
}

// LeadershipItem is a leadership skill with examples.
type LeadershipItem struct {
	ID          json.Number `json:"id,omitempty"`
	Skill       string      `json:"skill"`
	Description string      `json:"description,omitempty"`
	Examples    []string    `json:"examples,omitempty"`
}

// UnmarshalJSON accepts either a bare skill name or an object.
func (s *Skill) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = Skill{Name: name}
		return nil
	}
	type plain Skill
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Skill(p)
	return nil
}

type resumeSectionAlias ResumeSection

type resumeSectionWire struct {
	resumeSectionAlias
	Items json.RawMessage `json:"items,omitempty"`
}

// UnmarshalJSON decodes the variant payload selected by "type".
func (s *ResumeSection) UnmarshalJSON(data []byte) error {
	var wire resumeSectionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = ResumeSection(wire.resumeSectionAlias)

	if len(wire.Items) == 0 || string(wire.Items) == "null" {
		return nil
	}

	var target any
	switch s.Type {
	case ResumeExperience:
		target = &s.Experience
	case ResumeEducation:
		target = &s.Education
	case ResumeProjects:
		target = &s.Projects
	case ResumeCertifications:
		target = &s.Certifications
	case ResumeLeadership:
		target = &s.Leadership
	default:
		return nil
	}

	if err := json.Unmarshal(wire.Items, target); err != nil {
		return fmt.Errorf("resume section %q: invalid items: %w", s.Title, err)
	}
	return nil
}

// MarshalJSON encodes the variant payload back under "items".
func (s ResumeSection) MarshalJSON() ([]byte, error) {
	wire := struct {
		resumeSectionAlias
		Items any `json:"items,omitempty"`
	}{resumeSectionAlias: resumeSectionAlias(s)}

	switch s.Type {
	case ResumeExperience:
		wire.Items = s.Experience
	case ResumeEducation:
		wire.Items = s.Education
	case ResumeProjects:
		wire.Items = s.Projects
	case ResumeCertifications:
		wire.Items = s.Certifications
	case ResumeLeadership:
		wire.Items = s.Leadership
	}
	return json.Marshal(wire)
}

// Resume decodes the typed resume view. A missing resume yields an empty one.
func (d Document) Resume() (*Resume, error) {
	raw := d.Record(SectionResume)
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resume: %w", err)
	}

	var r Resume
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode resume: %w", err)
	}
	if r.Sections == nil {
		r.Sections = []ResumeSection{}
	}
	return &r, nil
}

// SectionsOfType filters the resume sections by variant.
func (r *Resume) SectionsOfType(t ResumeSectionType) []ResumeSection {
	var out []ResumeSection
	for _, s := range r.Sections {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}
