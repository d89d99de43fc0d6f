package types

// Outcome is the terminal result of one credential-to-decision session.
type Outcome string

const (
	// OutcomeGranted: the credential is known and the recognized face
	// matches the subject bound to it.
	OutcomeGranted Outcome = "granted"

	// OutcomeDeniedUnknownCredential: the card is not in the directory;
	// no camera session was started.
	OutcomeDeniedUnknownCredential Outcome = "denied_unknown_credential"

	// OutcomeDeniedIdentityMismatch: a subject was recognized, but not
	// the one bound to the swiped credential.
	OutcomeDeniedIdentityMismatch Outcome = "denied_identity_mismatch"

	// OutcomeDeniedNoRecognition: no subject reached the vote threshold
	// before the deadline (or the frame source failed, or unknown-capture
	// saturation ended the session).
	OutcomeDeniedNoRecognition Outcome = "denied_no_recognition"

	// OutcomeDeniedBusy: another session was already in flight when the
	// credential arrived. Rejected synchronously, never queued.
	OutcomeDeniedBusy Outcome = "denied_busy"
)

// Granted reports whether the outcome opens the door.
func (o Outcome) Granted() bool { return o == OutcomeGranted }

// Decision is what the controller returns to the reader for one
// delivered credential.
type Decision struct {
	SessionID  string    `json:"session_id"`
	Outcome    Outcome   `json:"outcome"`
	Granted    bool      `json:"granted"`
	Subject    SubjectID `json:"subject,omitempty"`
	ServerTime string    `json:"server_time"`
}
