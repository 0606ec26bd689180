package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const commandTimeout = time.Minute

// invocation is the outcome of one command line. mokugo logs and reports
// errors on stderr and prints results on stdout; output holds both.
type invocation struct {
	line     string
	output   string
	exitCode int
}

func (inv invocation) String() string {
	return fmt.Sprintf("%q exited with %d:\n%s", inv.line, inv.exitCode, inv.output)
}

// iRun executes a whitespace-separated command line in the library root.
// {workdir} expands to the root itself.
func (s *Scenario) iRun(line string) error {
	args := strings.Fields(strings.ReplaceAll(line, "{workdir}", s.Root))
	if len(args) == 0 {
		return errors.New("empty command line")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = s.Root
	cmd.Env = append(os.Environ(), s.env...)

	out, err := cmd.CombinedOutput()
	s.last = invocation{line: line, output: string(out)}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("failed to start %q: %w", line, err)
		}
		s.last.exitCode = exitErr.ExitCode()
	}
	return nil
}

func (s *Scenario) theCommandShouldSucceed() error {
	if s.last.exitCode != 0 {
		return fmt.Errorf("expected success, %s", s.last)
	}
	return nil
}

func (s *Scenario) theCommandShouldFail() error {
	if s.last.exitCode == 0 {
		return fmt.Errorf("expected failure, %s", s.last)
	}
	return nil
}

func (s *Scenario) theOutputShouldContain(text string) error {
	if !strings.Contains(s.last.output, text) {
		return fmt.Errorf("output lacks %q, %s", text, s.last)
	}
	return nil
}

// theErrorShouldMention checks that the command failed and named the cause,
// ignoring case.
func (s *Scenario) theErrorShouldMention(text string) error {
	if err := s.theCommandShouldFail(); err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(s.last.output), strings.ToLower(text)) {
		return fmt.Errorf("failure does not mention %q, %s", text, s.last)
	}
	return nil
}
