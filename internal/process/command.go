package process

import (
	"io"
	"os"
	"strings"
)

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env replaces the child environment when non-nil.
	Env []string
	// Nil streams are inherited from the parent process.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// FromArgv builds a Command from an argv slice. An empty argv yields a zero Command.
func FromArgv(argv []string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	return Command{Name: argv[0], Args: append([]string(nil), argv[1:]...)}
}

func (c Command) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c Command) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c Command) stderr() io.Writer {
	if c.Stderr != nil {
		return c.Stderr
	}
	return os.Stderr
}
