// Package registration implements the three step personnel registration form
// as a pure reducer over State. Storage and HTTP live elsewhere.
package registration

import (
	"context"
	"errors"
	"strings"

	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/validation"
)

// TotalSteps is the number of form pages.
const TotalSteps = 3

// Field names a draft input.
type Field string

const (
	FieldNIP         Field = "nip"
	FieldFullName    Field = "fullName"
	FieldPosition    Field = "position"
	FieldInstitution Field = "institution"
	FieldProvince    Field = "province"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldCertificate Field = "certificate"
)

var stepFields = [TotalSteps][]Field{
	{FieldNIP, FieldFullName, FieldPosition},
	{FieldInstitution, FieldProvince},
	{FieldEmail, FieldPhone, FieldCertificate},
}

// StepOf returns the page holding field, or 0 for unknown fields.
func StepOf(field Field) int {
	for i, fields := range stepFields {
		for _, f := range fields {
			if f == field {
				return i + 1
			}
		}
	}
	return 0
}

var (
	ErrUnknownField     = errors.New("unknown registration field")
	ErrAlreadySubmitted = errors.New("registration already submitted")
	ErrNotFinalStep     = errors.New("registration can only be submitted from the final step")
	ErrInvalid          = errors.New("registration has invalid fields")
)

// Certificate is the uploaded supporting document attached in step 3.
type Certificate struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
}

// Draft accumulates the applicant's answers.
type Draft struct {
	NIP         string       `json:"nip"`
	FullName    string       `json:"fullName"`
	Position    string       `json:"position"`
	Institution string       `json:"institution"`
	Province    string       `json:"province"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

func (d *Draft) set(field Field, value string) error {
	switch field {
	case FieldNIP:
		d.NIP = strings.TrimSpace(value)
	case FieldFullName:
		d.FullName = value
	case FieldPosition:
		d.Position = value
	case FieldInstitution:
		d.Institution = value
	case FieldProvince:
		d.Province = value
	case FieldEmail:
		d.Email = strings.TrimSpace(value)
	case FieldPhone:
		d.Phone = value
	default:
		return ErrUnknownField
	}
	return nil
}

// State is one snapshot of the form. Step is 1..TotalSteps until Submitted.
type State struct {
	Step      int                    `json:"step"`
	Draft     Draft                  `json:"draft"`
	Errors    validation.FieldErrors `json:"errors,omitempty"`
	Submitted bool                   `json:"submitted"`
	RecordID  string                 `json:"recordId,omitempty"`
}

// Progress returns current and total steps.
func (s State) Progress() (current, total int) {
	if s.Submitted {
		return TotalSteps, TotalSteps
	}
	return s.Step, TotalSteps
}

// Percent renders progress as 0..100.
func (s State) Percent() int {
	current, total := s.Progress()
	return current * 100 / total
}

// clone copies s and pulls a zero or out-of-range step back into 1..TotalSteps.
func (s State) clone() State {
	out := s
	switch {
	case out.Step < 1:
		out.Step = 1
	case out.Step > TotalSteps:
		out.Step = TotalSteps
	}
	out.Errors = s.Errors.Clone()
	if s.Draft.Certificate != nil {
		cert := *s.Draft.Certificate
		out.Draft.Certificate = &cert
	}
	return out
}

// Sink persists a finalized draft and returns the created record id.
type Sink interface {
	SubmitRegistration(ctx context.Context, draft Draft) (string, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, draft Draft) (string, error)

// SubmitRegistration implements Sink.
func (f SinkFunc) SubmitRegistration(ctx context.Context, draft Draft) (string, error) {
	return f(ctx, draft)
}

// Rules carries runtime configuration used by the validators.
type Rules struct {
	EmailDomains []string
}

// Form is the stateless controller for registration drafts.
type Form struct {
	rules Rules
}

// NewForm constructs a controller using rules.
func NewForm(rules Rules) *Form {
	return &Form{rules: rules}
}

// Start returns an empty draft on step 1.
func (f *Form) Start() State {
	return State{Step: 1, Errors: validation.FieldErrors{}}
}

// ValidateStep checks only the fields owned by step.
func (f *Form) ValidateStep(step int, d Draft) validation.FieldErrors {
	errs := validation.FieldErrors{}
	if step < 1 || step > TotalSteps {
		return errs
	}
	for _, field := range stepFields[step-1] {
		errs.Add(string(field), f.validateField(field, d))
	}
	return errs
}

func (f *Form) validateField(field Field, d Draft) error {
	switch field {
	case FieldNIP:
		return validation.NIP(d.NIP)
	case FieldFullName:
		return validation.Required(d.FullName)
	case FieldPosition:
		if err := validation.Required(d.Position); err != nil {
			return err
		}
		if _, ok := models.RoleForPosition(d.Position); !ok {
			return errors.New("jabatan tidak dikenal")
		}
	case FieldInstitution:
		return validation.Required(d.Institution)
	case FieldProvince:
		if err := validation.Required(d.Province); err != nil {
			return err
		}
		if !models.ValidProvince(d.Province) {
			return validation.ErrUnknownProvince
		}
	case FieldEmail:
		return validation.EmailDomain(d.Email, f.rules.EmailDomains...)
	case FieldPhone:
		return validation.Required(d.Phone)
	case FieldCertificate:
		if d.Certificate == nil {
			return validation.FilePresence(nil)
		}
		return validation.FilePresence(&validation.File{Name: d.Certificate.Name, Size: d.Certificate.Size})
	}
	return nil
}

// Next advances when the current step validates; otherwise the errors are recorded
// and the step is unchanged. The last step stays put.
func (f *Form) Next(s State) State {
	if s.Submitted {
		return s
	}
	out := s.clone()
	errs := f.ValidateStep(out.Step, out.Draft)
	if !errs.Valid() {
		out.Errors.Merge(errs)
		return out
	}
	for _, field := range stepFields[out.Step-1] {
		out.Errors.Clear(string(field))
	}
	if out.Step < TotalSteps {
		out.Step++
	}
	return out
}

// Back moves one step back without validating. Step 1 stays put.
func (f *Form) Back(s State) State {
	if s.Submitted {
		return s
	}
	out := s.clone()
	if out.Step > 1 {
		out.Step--
	}
	return out
}

// Edit stores value and clears only that field's error. Validation is not re-run.
func (f *Form) Edit(s State, field Field, value string) (State, error) {
	if s.Submitted {
		return s, ErrAlreadySubmitted
	}
	if field == FieldCertificate {
		return s, ErrUnknownField
	}
	out := s.clone()
	if err := out.Draft.set(field, value); err != nil {
		return s, err
	}
	out.Errors.Clear(string(field))
	return out, nil
}

// AttachCertificate records the uploaded document and clears its error.
func (f *Form) AttachCertificate(s State, cert Certificate) (State, error) {
	if s.Submitted {
		return s, ErrAlreadySubmitted
	}
	out := s.clone()
	out.Draft.Certificate = &cert
	out.Errors.Clear(string(FieldCertificate))
	return out, nil
}

// Submit revalidates every step and hands the draft to sink. On validation failure the
// state moves to the first failing step with its errors; on sink failure the input state
// is returned unchanged with the sink error.
func (f *Form) Submit(ctx context.Context, s State, sink Sink) (State, error) {
	if s.Submitted {
		return s, ErrAlreadySubmitted
	}
	if s.Step != TotalSteps {
		return s, ErrNotFinalStep
	}

	all := validation.FieldErrors{}
	firstFailing := 0
	for step := 1; step <= TotalSteps; step++ {
		errs := f.ValidateStep(step, s.Draft)
		if !errs.Valid() && firstFailing == 0 {
			firstFailing = step
		}
		all.Merge(errs)
	}
	if firstFailing != 0 {
		out := s.clone()
		out.Errors = all
		out.Step = firstFailing
		return out, ErrInvalid
	}

	id, err := sink.SubmitRegistration(ctx, normalise(s.Draft))
	if err != nil {
		return s, err
	}
	out := s.clone()
	out.Submitted = true
	out.RecordID = id
	out.Errors = validation.FieldErrors{}
	return out, nil
}

func normalise(d Draft) Draft {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Position = strings.ToLower(strings.TrimSpace(d.Position))
	d.Institution = strings.TrimSpace(d.Institution)
	d.Province = strings.ToLower(strings.TrimSpace(d.Province))
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	return d
}
