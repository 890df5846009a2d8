package identity

// Op names the session operation that failed.
type Op string

// Operations
const (
	OpLogin  Op = "login"
	OpSignup Op = "signup"
	OpLogout Op = "logout"
)

// AuthError wraps a provider failure (bad credentials, duplicate account,
// expired session, network) for display to the user.
type AuthError struct {
	Op  Op
	Err error
}

func (e *AuthError) Error() string {
	switch e.Op {
	case OpLogin:
		return "Failed to log in: " + e.Err.Error()
	case OpSignup:
		return "Failed to create account: " + e.Err.Error()
	case OpLogout:
		return "Failed to log out: " + e.Err.Error()
	default:
		return string(e.Op) + ": " + e.Err.Error()
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
