package domain

// Identity is the authenticated principal: the subject a token asserts plus
// the membership tags recorded for it. Read-only to the auth layer.
type Identity struct {
	Username string
	Roles    []string
}
