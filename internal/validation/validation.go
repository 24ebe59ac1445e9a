// Package validation holds the field rules shared by the registration form,
// certification intake and document uploads. Every rule returns nil when the
// value is acceptable, otherwise an error whose message is shown next to the field.
package validation

import (
	"errors"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultEmailDomain is accepted when no domain list is configured.
const DefaultEmailDomain = ".go.id"

var nipPattern = regexp.MustCompile(`^\d{18}$`)

// Field messages.
var (
	ErrNIPFormat       = errors.New("NIP harus terdiri dari 18 digit angka")
	ErrEmailDomain     = errors.New("email harus menggunakan domain instansi pemerintah")
	ErrRequired        = errors.New("wajib diisi")
	ErrDateMissing     = errors.New("tanggal terbit dan tanggal kadaluarsa wajib diisi")
	ErrDateOrder       = errors.New("tanggal kadaluarsa harus setelah tanggal terbit")
	ErrFileMissing     = errors.New("dokumen wajib diunggah")
	ErrFileTooLarge    = errors.New("ukuran file melebihi batas maksimum")
	ErrFileType        = errors.New("format file tidak didukung")
	ErrUnknownProvince = errors.New("provinsi tidak dikenal")
)

// NIP validates an employee identification number: exactly 18 decimal digits.
func NIP(value string) error {
	if !nipPattern.MatchString(value) {
		return ErrNIPFormat
	}
	return nil
}

// IsNIP reports whether value has the NIP shape.
func IsNIP(value string) bool {
	return nipPattern.MatchString(value)
}

// EmailDomain requires a non-empty address ending with one of suffixes; a dotted
// suffix also matches the bare domain after "@".
// Matching ignores case. With no suffixes the default domain applies.
func EmailDomain(value string, suffixes ...string) error {
	email := strings.ToLower(strings.TrimSpace(value))
	if email == "" || !strings.Contains(email, "@") {
		return ErrEmailDomain
	}
	if len(suffixes) == 0 {
		suffixes = []string{DefaultEmailDomain}
	}
	for _, suffix := range suffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix == "" {
			continue
		}
		if strings.HasSuffix(email, suffix) {
			return nil
		}
		// ".kemendag.go.id" also admits the bare domain "@kemendag.go.id".
		if strings.HasPrefix(suffix, ".") && strings.HasSuffix(email, "@"+suffix[1:]) {
			return nil
		}
	}
	return ErrEmailDomain
}

// DateOrder requires both dates and expiry strictly after issue.
func DateOrder(issue, expiry time.Time) error {
	if issue.IsZero() || expiry.IsZero() {
		return ErrDateMissing
	}
	if !expiry.After(issue) {
		return ErrDateOrder
	}
	return nil
}

// File describes an upload candidate without its content.
type File struct {
	Name string
	Size int64
}

// FileConstraints bounds what an upload context accepts. Extensions are lower case without the dot.
type FileConstraints struct {
	MaxSizeBytes      int64
	AllowedExtensions []string
}

// Allows reports whether ext (with or without dot) is accepted.
func (c FileConstraints) Allows(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// FilePresence requires a selected file.
func FilePresence(file *File) error {
	if file == nil || strings.TrimSpace(file.Name) == "" {
		return ErrFileMissing
	}
	return nil
}

// FileConstraintsCheck applies size and extension limits.
func FileConstraintsCheck(file File, c FileConstraints) error {
	if c.MaxSizeBytes > 0 && file.Size > c.MaxSizeBytes {
		return ErrFileTooLarge
	}
	if !c.Allows(filepath.Ext(file.Name)) {
		return ErrFileType
	}
	return nil
}

// Required rejects blank input.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrRequired
	}
	return nil
}

// FieldErrors maps a field name to its message. An empty map means valid.
type FieldErrors map[string]string

// Add records err against field when non-nil.
func (f FieldErrors) Add(field string, err error) {
	if err != nil {
		f[field] = err.Error()
	}
}

// Valid reports whether no field failed.
func (f FieldErrors) Valid() bool { return len(f) == 0 }

// Clear drops the error of one field.
func (f FieldErrors) Clear(field string) { delete(f, field) }

// Merge copies other into f.
func (f FieldErrors) Merge(other FieldErrors) {
	for k, v := range other {
		f[k] = v
	}
}

// Clone returns an independent copy.
func (f FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(f))
	out.Merge(f)
	return out
}

// RegisterTags installs the nip tag on v so request DTOs can declare `validate:"nip"`.
func RegisterTags(v *validator.Validate) error {
	return v.RegisterValidation("nip", func(fl validator.FieldLevel) bool {
		return IsNIP(fl.Field().String())
	})
}

// NewValidator returns a validator with the custom tags installed. Field names
// in errors follow the json tag so they line up with request payload keys.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			name = fld.Name
		}
		return name
	})
	if err := RegisterTags(v); err != nil {
		panic(err)
	}
	return v
}

// Describe flattens go-playground validation errors into FieldErrors keyed by the struct field.
func Describe(err error) FieldErrors {
	fields := FieldErrors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}
	for _, fe := range verrs {
		name := fe.Field()
		switch fe.Tag() {
		case "nip":
			fields[name] = ErrNIPFormat.Error()
		case "required":
			fields[name] = ErrRequired.Error()
		default:
			fields[name] = "nilai tidak valid (" + fe.Tag() + ")"
		}
	}
	return fields
}
