package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// A Prompter asks the user for GitHub credentials that were neither
// configured nor passed on the command line. Without ReadPassword the
// password is read from In like the user name.
type Prompter struct {
	In           io.Reader
	Out          io.Writer
	ReadPassword func() ([]byte, error)
}

func NewTerminalPrompter() *Prompter {
	p := &Prompter{
		In:  os.Stdin,
		Out: os.Stdout,
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.ReadPassword = func() ([]byte, error) {
			return term.ReadPassword(fd)
		}
	}
	return p
}

// readLine reads up to the next newline one byte at a time, so nothing
// after the line is consumed from In.
func (p *Prompter) readLine() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := p.In.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}

// Credentials returns a copy of gh with missing user name and password
// filled in. A configured token makes prompting unnecessary.
func (p *Prompter) Credentials(gh GitHub) (GitHub, error) {
	if gh.Token != "" {
		return gh, nil
	}
	if gh.User == "" {
		fmt.Fprint(p.Out, "GitHub username: ")
		line, err := p.readLine()
		if err != nil {
			return gh, fmt.Errorf("read username: %w", err)
		}
		gh.User = strings.TrimSpace(line)
	}
	if gh.Password == "" {
		fmt.Fprint(p.Out, "GitHub password: ")
		var secret string
		if p.ReadPassword != nil {
			b, err := p.ReadPassword()
			fmt.Fprint(p.Out, "\n")
			if err != nil {
				return gh, fmt.Errorf("read password: %w", err)
			}
			secret = string(b)
		} else {
			line, err := p.readLine()
			if err != nil {
				return gh, fmt.Errorf("read password: %w", err)
			}
			secret = line
		}
		gh.Password = secret
	}
	return gh, nil
}
