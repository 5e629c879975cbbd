package model

import "strings"

// OtherProvider is the dropdown value that requires a free-text label.
const OtherProvider = "Other"

// FormRowState is the state of the single vault input row.
type FormRowState int

const (
	FormRowEmpty FormRowState = iota
	FormRowProviderChosen
	FormRowOtherLabelEntered
	FormRowKeyEntered
	FormRowSaveable
)

// String returns the state name used in templates and logs.
func (s FormRowState) String() string {
	switch s {
	case FormRowEmpty:
		return "empty"
	case FormRowProviderChosen:
		return "provider_chosen"
	case FormRowOtherLabelEntered:
		return "other_label_entered"
	case FormRowKeyEntered:
		return "key_entered"
	case FormRowSaveable:
		return "saveable"
	default:
		return "unknown"
	}
}

// FormRow is the vault input row: a provider choice, a free-text label used
// when Provider is OtherProvider, and the secret being entered.
type FormRow struct {
	Provider   string
	OtherLabel string
	Secret     string
}

// Label resolves the label the row would be saved under.
func (r FormRow) Label() string {
	if r.Provider == OtherProvider {
		return strings.TrimSpace(r.OtherLabel)
	}
	return strings.TrimSpace(r.Provider)
}

// State derives the row state from its fields.
func (r FormRow) State() FormRowState {
	provider := strings.TrimSpace(r.Provider)
	secret := strings.TrimSpace(r.Secret)

	switch {
	case provider == "":
		return FormRowEmpty
	case r.Label() != "" && secret != "":
		return FormRowSaveable
	case secret != "":
		return FormRowKeyEntered
	case provider == OtherProvider && r.Label() != "":
		return FormRowOtherLabelEntered
	default:
		return FormRowProviderChosen
	}
}

// Saveable reports whether the row can be committed to the vault.
func (r FormRow) Saveable() bool {
	return r.State() == FormRowSaveable
}
