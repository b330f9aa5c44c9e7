package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind identifies what a line of input asks for.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandSend
	CommandReply
	CommandCancel
	CommandJoin
	CommandHelp
	CommandQuit
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadIndex       = errors.New("expected a message number")
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind
	// Text is the message for CommandSend and the optional name for
	// CommandJoin.
	Text string
	// Index is the 1-based log entry number for CommandReply.
	Index int
}

// ParseCommand interprets a line typed by the user. Lines starting with "/"
// are commands; "//" escapes a message that starts with a slash. Anything
// else is a message.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{Kind: CommandNone}, nil
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Kind: CommandSend, Text: strings.TrimPrefix(strings.TrimLeft(line, " \t"), "/")}, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandSend, Text: line}, nil
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "reply", "r":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return Command{}, fmt.Errorf("%w: %q", ErrBadIndex, arg)
		}
		return Command{Kind: CommandReply, Index: n}, nil
	case "cancel":
		return Command{Kind: CommandCancel}, nil
	case "join":
		return Command{Kind: CommandJoin, Text: arg}, nil
	case "help", "?":
		return Command{Kind: CommandHelp}, nil
	case "quit", "exit":
		return Command{Kind: CommandQuit}, nil
	default:
		return Command{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
}

const helpText = `commands:
  <text>       send a message
  /reply N     reply to message N
  /cancel      stop replying
  /join [name] reconnect, optionally under a new name
  /quit        leave the chat
  //text       send a message starting with "/"`
