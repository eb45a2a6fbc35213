package mqttclient

// AuthGuard is the authorization capability a Session consults before
// honoring a principal's request to perform operation against resource
// (spec §1's "authorization policy evaluation", treated as a single
// boolean check rather than a policy language this bridge owns).
// Evaluating the policy itself is someone else's concern; AuthGuard is
// just the seam a caller plugs a real policy engine into.
type AuthGuard interface {
	Check(principal, operation, resource string) bool
}

// allowAllGuard is the zero-configuration AuthGuard: every request is
// permitted. It exists so a Session is usable without wiring an
// external policy engine, not as a statement about what production
// deployments should do.
type allowAllGuard struct{}

func (allowAllGuard) Check(principal, operation, resource string) bool { return true }

// Authorize reports whether principal may perform operation against
// resource, delegating to the configured AuthGuard.
func (s *Session) Authorize(principal, operation, resource string) bool {
	return s.opts.AuthGuard.Check(principal, operation, resource)
}
