// Package prompt asks yes/no questions on the controlling terminal.
// survey takes the terminal into raw mode for the duration of one question
// and restores prior state on every exit path, which gives the prompt
// exclusive use of the input stream.
package prompt

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// Confirm presents a yes/no question and returns the operator's answer.
// It fails rather than blocks when no terminal is attached.
func Confirm(question string) (bool, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return false, fmt.Errorf("cannot prompt %q: stdin is not a terminal", question)
	}
	answer := false
	p := &survey.Confirm{Message: question, Default: false}
	if err := survey.AskOne(p, &answer); err != nil {
		return false, err
	}
	return answer, nil
}
