package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema describes the record an extraction call must produce.
type Schema struct {
	// Name identifies the schema in logs and errors.
	Name string
	// Instruction is a short, role-specific hint placed in the prompt.
	Instruction string
	// Document is the JSON Schema the payload is validated against.
	Document map[string]any
}

// JSON renders the schema document for embedding in a prompt.
func (s Schema) JSON() string {
	b, err := json.MarshalIndent(s.Document, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Validate checks raw JSON against the schema document.
func (s Schema) Validate(data []byte) error {
	b, err := json.Marshal(s.Document)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(s.Name+".json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(s.Name + ".json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("payload does not match %s schema: %w", s.Name, err)
	}
	return nil
}

func nullable(kind string) map[string]any {
	return map[string]any{"type": []any{kind, "null"}}
}

func stringList(description string) map[string]any {
	return map[string]any{
		"type":        []any{"array", "null"},
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

func describedString(description string) map[string]any {
	s := nullable("string")
	s["description"] = description
	return s
}

func objectList(description string, fields ...string) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f] = nullable("string")
	}
	return map[string]any{
		"type":        []any{"array", "null"},
		"description": description,
		"items": map[string]any{
			"type":       "object",
			"properties": props,
		},
	}
}

// ResumeSchema is the target schema for resume extraction.
func ResumeSchema() Schema {
	return Schema{
		Name:        "resume",
		Instruction: "Parse the following resume text and extract the candidate information.",
		Document: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"candidate_name": describedString("Full name of the candidate"),
				"email":          describedString("Email address of the candidate"),
				"phone":          describedString("Phone number of the candidate"),
				"summary":        describedString("Professional summary or objective"),
				"skills":         stringList("List of skills"),
				"experience":     objectList("List of work experiences", "job_title", "company", "duration", "description"),
				"education":      objectList("List of educational qualifications", "degree", "institution", "years"),
				"misc": map[string]any{
					"type":        []any{"object", "null"},
					"description": "Any other relevant extracted information",
				},
			},
		},
	}
}

// JobDescriptionSchema is the target schema for job description extraction.
func JobDescriptionSchema() Schema {
	return Schema{
		Name:        "job_description",
		Instruction: "Analyze the following job description and extract the key requirements.",
		Document: map[string]any{
			"type":     "object",
			"required": []any{"job_title"},
			"properties": map[string]any{
				"job_title": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "The title of the job",
				},
				"company":             describedString("Company name (if available)"),
				"location":            describedString("Job location (if available)"),
				"summary":             describedString("Brief summary of the role"),
				"responsibilities":    stringList("List of key responsibilities"),
				"required_skills":     stringList("List of mandatory skills"),
				"preferred_skills":    stringList("List of desired but not mandatory skills"),
				"required_experience": describedString("Minimum years/type of experience required"),
				"required_education":  describedString("Minimum education level required"),
				"misc": map[string]any{
					"type":        []any{"object", "null"},
					"description": "Other details like salary range, benefits etc.",
				},
			},
		},
	}
}
