package domain

// DecisionKind is the outcome of gating a delivery request.
type DecisionKind int

const (
	// RejectedMissing means no token argument was supplied.
	RejectedMissing DecisionKind = iota
	// RejectedInvalid means the token did not decode or has no record.
	RejectedInvalid
	// RejectedExpired means the record exists but is past its delivery window.
	RejectedExpired
	// GrantedToken means the token is valid and within its window.
	GrantedToken
	// GrantedUnlimited means the requester is on the premium list.
	GrantedUnlimited
)

// String returns the metric/log label of the kind.
func (k DecisionKind) String() string {
	switch k {
	case RejectedMissing:
		return "missing"
	case RejectedInvalid:
		return "invalid"
	case RejectedExpired:
		return "expired"
	case GrantedToken:
		return "granted"
	case GrantedUnlimited:
		return "premium"
	default:
		return "unknown"
	}
}

// Decision is the result of an access check.
type Decision struct {
	Kind DecisionKind

	// Record is set for GrantedToken and RejectedExpired. For GrantedUnlimited
	// it is set only when the request also carried a known token.
	Record *TokenRecord

	// Cause tells RejectedInvalid apart: ErrTokenMalformed when the
	// transport string did not decode, ErrTokenNotFound when it named no
	// record.
	Cause error
}

// Granted reports whether delivery may proceed.
func (d *Decision) Granted() bool {
	return d.Kind == GrantedToken || d.Kind == GrantedUnlimited
}

// Files returns the files to deliver for this decision, if any.
func (d *Decision) Files() []string {
	if !d.Granted() || d.Record == nil {
		return nil
	}
	return d.Record.Files
}

// Err maps a rejection to its domain error. Grants return nil.
func (d *Decision) Err() error {
	switch d.Kind {
	case RejectedMissing:
		return ErrTokenMissing
	case RejectedInvalid:
		if d.Cause != nil {
			return ErrTokenInvalid.WithCause(d.Cause)
		}
		return ErrTokenInvalid
	case RejectedExpired:
		return ErrTokenExpired
	default:
		return nil
	}
}
