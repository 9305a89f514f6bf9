package safevoice

// Default redirect targets used by the package-level [Authorize].
const (
	// TargetLogin is where unauthenticated subjects are redirected.
	TargetLogin = "/login"
	// TargetHome is where authenticated subjects lacking the required role
	// are redirected.
	TargetHome = "/"
)

// Decision is the authorization gate's verdict for a protected view.
type Decision struct {
	Allowed bool
	// Target is the redirect destination when Allowed is false.
	Target string
}

// Authorize decides whether the session snapshot may reach a view protected
// by the given roles. Rules, in order: a session that is not Authenticated
// redirects to login; an empty role set allows any authenticated subject;
// a matching role allows; otherwise the subject is redirected home — an
// authenticated user with the wrong role is not "logged out".
//
// Authorize is pure: no network, no storage, deterministic for a given
// snapshot.
func Authorize(snap Snapshot, required ...Role) Decision {
	return authorize(snap, TargetLogin, TargetHome, required)
}

func authorize(snap Snapshot, loginTarget, homeTarget string, required []Role) Decision {
	if snap.Status != StatusAuthenticated {
		return Decision{Target: loginTarget}
	}
	if len(required) == 0 {
		return Decision{Allowed: true}
	}
	for _, role := range required {
		if Role(snap.Role) == role {
			return Decision{Allowed: true}
		}
	}
	return Decision{Target: homeTarget}
}
