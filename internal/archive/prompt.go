package archive

// Prompter obtains a password from the operator. The terminal
// implementation masks input; tests use a scripted one.
type Prompter interface {
	Password(prompt string) (string, error)
}

// Confirmer is the confirmation strategy for destructive operations.
// DeleteContainer consults it before touching anything.
type Confirmer interface {
	// ConfirmDeletion reports whether the operator confirmed deleting
	// the named container holding count objects.
	ConfirmDeletion(name string, count int64) bool
}
