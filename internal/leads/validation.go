package leads

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// normalizeName trims and title-cases a contact name so "jane doe" and
// "Jane Doe" land as the same record value.
func normalizeName(name string) string {
	return titleCaser.String(strings.Join(strings.Fields(name), " "))
}

func validateCreate(req *CreateLeadRequest) error {
	req.Name = normalizeName(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return fmt.Errorf("lead name is required: %w", shared.ErrValidation)
	}
	if req.Phone == "" {
		return fmt.Errorf("lead phone is required: %w", shared.ErrValidation)
	}
	if req.Status != nil {
		if _, err := ParseStatus(string(*req.Status)); err != nil {
			return fmt.Errorf("%v: %w", err, shared.ErrValidation)
		}
	}
	return nil
}

func validateUpdate(req *UpdateLeadRequest) error {
	if req.Name != nil {
		normalized := normalizeName(*req.Name)
		if normalized == "" {
			return fmt.Errorf("lead name cannot be blank: %w", shared.ErrValidation)
		}
		req.Name = &normalized
	}
	if req.Phone != nil && strings.TrimSpace(*req.Phone) == "" {
		return fmt.Errorf("lead phone cannot be blank: %w", shared.ErrValidation)
	}
	if req.Status != nil {
		if _, err := ParseStatus(string(*req.Status)); err != nil {
			return fmt.Errorf("%v: %w", err, shared.ErrValidation)
		}
	}
	return nil
}
