package testutil

import "ark-go/internal/archive"

// ScriptedPrompter returns a fixed secret.
type ScriptedPrompter struct {
	Secret string
	Err    error
	Calls  int
}

func (p *ScriptedPrompter) Password(string) (string, error) {
	p.Calls++
	if p.Err != nil {
		return "", p.Err
	}
	return p.Secret, nil
}

// ScriptedConfirmer answers every deletion prompt with a fixed verdict
// and records what it was asked.
type ScriptedConfirmer struct {
	Confirm   bool
	Calls     int
	LastName  string
	LastCount int64
}

func (c *ScriptedConfirmer) ConfirmDeletion(name string, count int64) bool {
	c.Calls++
	c.LastName = name
	c.LastCount = count
	return c.Confirm
}

var (
	_ archive.Prompter  = (*ScriptedPrompter)(nil)
	_ archive.Confirmer = (*ScriptedConfirmer)(nil)
)
