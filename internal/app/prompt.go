package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"ark-go/internal/archive"
)

// TermPrompter reads a password from the controlling terminal with
// echoing disabled.
type TermPrompter struct{}

func (TermPrompter) Password(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

// TermConfirmer implements the double-confirmation for destructive
// operations: the operator must re-type the container name exactly.
type TermConfirmer struct{}

func (TermConfirmer) ConfirmDeletion(name string, count int64) bool {
	fmt.Fprintf(os.Stderr, "About to delete container %q and the %d object(s) in it.\n", name, count)
	fmt.Fprintf(os.Stderr, "Re-type the container name to confirm: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == name
}

var _ archive.Prompter = TermPrompter{}
var _ archive.Confirmer = TermConfirmer{}
