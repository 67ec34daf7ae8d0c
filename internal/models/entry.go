package models

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// BirthDateLayout is the date format the backend matches roster entries against.
const BirthDateLayout = "01/02/2006"

var inputDateLayouts = []string{BirthDateLayout, "2006-01-02", "1/2/2006"}

// LicenseEntry holds the details of the provider to create.
type LicenseEntry struct {
	Username  string `json:"username" validate:"required"`
	BirthDate string `json:"birth_date" validate:"required,birthdate"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,len=10,numeric"`
}

// CreateEntryRequest is the JSON body of POST /create-licence-entry.
type CreateEntryRequest struct {
	LicenseEntry
	PrimaryToken   string `json:"primaryToken"`
	SecondaryToken string `json:"secondaryToken"`
}

// NewCreateEntryRequest combines an entry with the tokens authorizing it.
func NewCreateEntryRequest(entry LicenseEntry, tokens TokenPair) CreateEntryRequest {
	return CreateEntryRequest{
		LicenseEntry:   entry,
		PrimaryToken:   tokens.PrimaryToken,
		SecondaryToken: tokens.SecondaryToken,
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func entryValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("birthdate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(BirthDateLayout, fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Normalize trims whitespace, strips phone punctuation and rewrites the birth date as MM/DD/YYYY when it parses.
func (e LicenseEntry) Normalize() LicenseEntry {
	e.Username = strings.TrimSpace(e.Username)
	e.Email = strings.TrimSpace(e.Email)
	e.Phone = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(e.Phone))
	if d, err := NormalizeBirthDate(e.BirthDate); err == nil {
		e.BirthDate = d
	}
	return e
}

// Validate checks the entry the same way the backend does before it starts streaming.
func (e LicenseEntry) Validate() error {
	if err := entryValidator().Struct(e); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// NormalizeBirthDate accepts MM/DD/YYYY, M/D/YYYY or YYYY-MM-DD and returns MM/DD/YYYY.
func NormalizeBirthDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(BirthDateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized birth date %q", s)
}
