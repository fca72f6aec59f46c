package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldComponent = "component"
	FieldSession   = "session_id"
	FieldTarget    = "target_id"
	FieldElement   = "element_id"

	// Command fields
	FieldAction = "action"
	FieldSource = "source"

	// Playback fields
	FieldRate         = "rate"
	FieldRestoreRate  = "restore_rate"
	FieldActiveFor    = "active_for"
	FieldDetection    = "detection"
	FieldSigVersion   = "signature_version"
	FieldOldState     = "old_state"
	FieldNewState     = "new_state"
	FieldClickPath    = "click_path"
	FieldCoordinates  = "coords"
	FieldMutationKind = "mutation_kind"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
