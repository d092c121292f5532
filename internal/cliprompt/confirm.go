// Package cliprompt provides interactive terminal prompts for ggnetctl's
// destructive commands.
package cliprompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// Confirm prompts the user for yes/no confirmation, defaulting to no.
func Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s [y/N]", label),
		IsConfirm: true,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// ConfirmWithForce returns true immediately if force is true, otherwise
// prompts for confirmation.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label)
}
