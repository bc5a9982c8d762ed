package catalog

// ValidationStatus is the content review verdict for a product.
type ValidationStatus string

const (
	ValidationPending     ValidationStatus = "pending"
	ValidationBlocked     ValidationStatus = "blocked"
	ValidationChecked     ValidationStatus = "checked"
	ValidationNeedsReview ValidationStatus = "needs_review"
)

func (s ValidationStatus) Valid() bool {
	switch s {
	case ValidationPending, ValidationBlocked, ValidationChecked, ValidationNeedsReview:
		return true
	}
	return false
}

// ValidationState is either Auto(status), owned by the classifier, or
// ManualOverride(status), set by a reviewer and never touched by the classifier.
type ValidationState struct {
	manual bool
	status ValidationStatus
}

func Auto(status ValidationStatus) ValidationState {
	if !status.Valid() {
		status = ValidationPending
	}
	return ValidationState{status: status}
}

func ManualOverride(status ValidationStatus) ValidationState {
	if !status.Valid() {
		status = ValidationNeedsReview
	}
	return ValidationState{manual: true, status: status}
}

func (v ValidationState) Status() ValidationStatus {
	if v.status == "" {
		return ValidationPending
	}
	return v.status
}

func (v ValidationState) IsManual() bool { return v.manual }

func (v ValidationState) String() string {
	if v.manual {
		return "manual(" + string(v.Status()) + ")"
	}
	return "auto(" + string(v.Status()) + ")"
}

// ValidationEdit describes one product edit as seen by the validation pipeline.
type ValidationEdit struct {
	// SetManual is nil when the edit leaves the override flag as it was.
	SetManual *bool
	// Status is what a reviewer picked. Only honoured under manual override.
	Status ValidationStatus
	// ContentChanged is true when name or description differ from the stored product.
	ContentChanged bool
	// Verdict is the classifier answer for the edited content, empty if none was obtained.
	Verdict ValidationStatus
}

// NeedsClassification reports whether applying edit to current would consult the classifier.
func NeedsClassification(current ValidationState, edit ValidationEdit) bool {
	manual := current.manual
	if edit.SetManual != nil {
		manual = *edit.SetManual
	}
	if manual {
		return false
	}
	return current.manual || edit.ContentChanged || current.Status() == ValidationPending
}

// NextValidationState folds an edit into the current state.
//
// A manual override sticks until an edit explicitly clears it. Automatic states are
// recomputed from the verdict when content changed, when the override was just cleared,
// or when the product was never classified; otherwise they are kept.
func NextValidationState(current ValidationState, edit ValidationEdit) ValidationState {
	manual := current.manual
	if edit.SetManual != nil {
		manual = *edit.SetManual
	}

	if manual {
		status := current.Status()
		if edit.Status.Valid() && edit.Status != ValidationPending {
			status = edit.Status
		}
		return ManualOverride(status)
	}

	if !NeedsClassification(current, edit) {
		return current
	}
	return Auto(normalizeVerdict(edit.Verdict))
}

func normalizeVerdict(v ValidationStatus) ValidationStatus {
	switch v {
	case ValidationBlocked, ValidationChecked, ValidationNeedsReview:
		return v
	default:
		return ValidationNeedsReview
	}
}
