package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// Decode converts a schema-validated payload into a typed record.
// Scalars are coerced loosely because models tend to emit years and phone numbers as numbers.
func Decode(payload map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// DecodeResume decodes a resume payload.
func DecodeResume(payload map[string]any) (*ResumeInfo, error) {
	var info ResumeInfo
	if err := Decode(payload, &info); err != nil {
		return nil, err
	}
	info.Email = strings.TrimSpace(info.Email)
	return &info, nil
}

// DecodeJobDescription decodes a job description payload.
func DecodeJobDescription(payload map[string]any) (*JobDescriptionInfo, error) {
	var info JobDescriptionInfo
	if err := Decode(payload, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ValidEmail reports whether s is a syntactically valid address.
func ValidEmail(s string) bool {
	return validate.Var(strings.TrimSpace(s), "required,email") == nil
}

// ContactEmail returns the candidate address when it is usable for notifications.
func (r *ResumeInfo) ContactEmail() (string, bool) {
	if r == nil || !ValidEmail(r.Email) {
		return "", false
	}
	return strings.TrimSpace(r.Email), true
}
