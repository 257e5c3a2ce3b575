package record

import (
	"encoding/json"
	"regexp"
)

var idPattern = regexp.MustCompile(`^\d{10}-(task|cycle|exec|feedback|changelog|agent)-[a-z0-9-]{1,50}$`)
var actorIDPattern = regexp.MustCompile(`^(human|agent):[a-z0-9-]+$`)

// ValidID reports whether id matches the record-ID shape (§3).
func ValidID(id string) bool { return idPattern.MatchString(id) }

// ValidActorID reports whether id matches the actor-ID shape (§3).
func ValidActorID(id string) bool { return actorIDPattern.MatchString(id) }

// Validate runs schema validation for payload (marshaled to JSON first) and
// then the cross-field invariants §3 lists separately from the schema
// (invariant 4: risk/rollback/usersAffected/references.tasks coupling).
// Returns a *KindError with Kind == ValidationError (payload does not
// marshal or round-trip as JSON) or DetailedValidationError (schema or
// cross-field invariant failure) on any violation.
func Validate(t Type, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return NewKindError(ErrValidation, "payload does not marshal to JSON: %v", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return NewKindError(ErrValidation, "payload round-trip failed: %v", err)
	}

	if fieldErrs := ValidateSchema(t, decoded); len(fieldErrs) > 0 {
		return &KindError{Kind: ErrDetailedValidation, Message: "schema validation failed", Fields: fieldErrs}
	}

	if fieldErrs := crossFieldInvariants(t, payload); len(fieldErrs) > 0 {
		return &KindError{Kind: ErrDetailedValidation, Message: "invariant validation failed", Fields: fieldErrs}
	}

	return nil
}

// crossFieldInvariants implements §3 invariant 4, which a flat JSON Schema
// cannot express without schema-language-specific conditionals.
func crossFieldInvariants(t Type, payload any) []FieldError {
	if t != TypeChangelog {
		return nil
	}
	cl, ok := payload.(*ChangelogRecord)
	if !ok {
		if v, ok2 := payload.(ChangelogRecord); ok2 {
			cl = &v
		} else {
			return nil
		}
	}

	var errs []FieldError
	switch cl.RiskLevel {
	case "high", "critical":
		if cl.RollbackInstructions == "" {
			errs = append(errs, FieldError{Field: "rollbackInstructions", Message: "required when riskLevel is high or critical", Value: cl.RiskLevel})
		}
		fallthrough
	case "medium":
		if cl.UsersAffected == "" {
			errs = append(errs, FieldError{Field: "usersAffected", Message: "required when riskLevel is medium, high, or critical", Value: cl.RiskLevel})
		}
	}
	if cl.ChangeType == "completion" {
		if cl.References == nil || len(cl.References.Tasks) == 0 {
			errs = append(errs, FieldError{Field: "references.tasks", Message: "required when changeType is completion"})
		}
	}
	return errs
}
