package attendance

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Validation codes returned to callers as field errors and bulk skip reasons.
const (
	CodeUnknownStudent       = "UnknownStudent"
	CodeInvalidKind          = "InvalidKind"
	CodeFutureTimestamp      = "FutureTimestamp"
	CodeInvalidDuration      = "InvalidDuration"
	CodeDuplicateRecord      = "DuplicateRecord"
	CodeDuplicateForDate     = "DuplicateForDate"
	CodeStudentNotInClass    = "StudentNotInClass"
	CodeUnknownClass         = "UnknownClass"
	CodeAlreadyJustified     = "AlreadyJustified"
	CodeInvalidJustification = "InvalidJustification"
)

var (
	kindBaseTag   = "kindbase"
	rollStatusTag = "rollstatus"
	notFutureTag  = "notfuture"
	durationTag   = "duration"

	justificationMinLen = 10

	// maxDelayMinutes caps Delay durations; overridden from config in InitValidators.
	maxDelayMinutes = 480

	nowFunc = time.Now // mockable
)

// InitValidators registers the attendance validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator, conf *core.Config) {
	if conf != nil && conf.Attendance.MaxDelayMinutes > 0 {
		maxDelayMinutes = conf.Attendance.MaxDelayMinutes
	}

	_ = validate.RegisterValidation(kindBaseTag, kindBaseValidation)
	core.RegisterCustomTranslation(validate, translator, kindBaseTag, CodeInvalidKind)

	_ = validate.RegisterValidation(rollStatusTag, rollStatusValidation)
	core.RegisterCustomTranslation(validate, translator, rollStatusTag, CodeInvalidKind)

	_ = validate.RegisterValidation(notFutureTag, notFutureValidation)
	core.RegisterCustomTranslation(validate, translator, notFutureTag, CodeFutureTimestamp)

	validate.RegisterStructValidation(recordStructValidation, NewRecord{}, EditRecord{}, RollCallEntry{})
	core.RegisterCustomTranslation(validate, translator, durationTag, CodeInvalidDuration)
}

// Custom Validators

func kindBaseValidation(fl validator.FieldLevel) bool {
	return Base(fl.Field().String()).Valid()
}

func rollStatusValidation(fl validator.FieldLevel) bool {
	return RollStatus(fl.Field().String()).Valid()
}

// notFutureValidation rejects timestamps strictly after now.
func notFutureValidation(fl validator.FieldLevel) bool {
	if t, ok := fl.Field().Interface().(time.Time); ok {
		return !t.After(nowFunc())
	}
	return false
}

// recordStructValidation checks duration against the base kind:
// a Delay requires 0 < duration <= maxDelayMinutes, an Absence takes none.
func recordStructValidation(sl validator.StructLevel) {
	switch rec := sl.Current().Interface().(type) {
	case NewRecord:
		validateDuration(sl, rec.KindBase, rec.DurationMinutes)
	case EditRecord:
		validateDuration(sl, rec.KindBase, rec.DurationMinutes)
	case RollCallEntry:
		validateDuration(sl, rec.Status.Base(), rec.DurationMinutes)
	}
}

func validateDuration(sl validator.StructLevel, base Base, duration int) {
	switch base {
	case BaseDelay:
		if duration <= 0 || duration > maxDelayMinutes {
			sl.ReportError(duration, "duration_minutes", "DurationMinutes", durationTag, "")
		}
	case BaseAbsence:
		if duration != 0 {
			sl.ReportError(duration, "duration_minutes", "DurationMinutes", durationTag, "")
		}
	}
}
