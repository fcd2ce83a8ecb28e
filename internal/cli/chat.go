package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// ChatHelp lists the chat commands.
const ChatHelp = `Type a message to send it as the customer. Commands:
  /pick <id>             select a list item (service, provider, slot)
  /tap <payload>         press a button (pay_now, pay_at_service)
  /loc <lat>,<lng>       share a location
  /form <name>|<address>|<date>  submit the booking form
  /help                  show this help
  /quit                  leave`

// ErrUnknownCommand is returned for slash commands the chat does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Conversation is the part of the concierge the chat drives.
type Conversation interface {
	Handle(ctx context.Context, sig domain.Signal) (*domain.Session, error)
	SubmitForm(ctx context.Context, form domain.FormSubmission) (*domain.Session, error)
}

// Command is one parsed chat line. Exactly one field is set.
type Command struct {
	Signal *domain.Signal
	Form   *domain.FormSubmission
	Help   bool
	Quit   bool
}

// ParseLine turns a chat line typed as customer from into a command.
func ParseLine(from, line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Signal: &domain.Signal{From: from, Body: line}}, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return Command{Quit: true}, nil
	case "/help":
		return Command{Help: true}, nil
	case "/pick":
		if arg == "" {
			return Command{}, errors.New("usage: /pick <id>")
		}
		return Command{Signal: &domain.Signal{From: from, ListID: arg}}, nil
	case "/tap":
		if arg == "" {
			return Command{}, errors.New("usage: /tap <payload>")
		}
		return Command{Signal: &domain.Signal{From: from, ButtonPayload: arg}}, nil
	case "/loc":
		lat, lng, err := parseCoordinates(arg)
		if err != nil {
			return Command{}, err
		}
		return Command{Signal: &domain.Signal{From: from, Latitude: &lat, Longitude: &lng}}, nil
	case "/form":
		parts := strings.Split(arg, "|")
		if len(parts) != 3 {
			return Command{}, errors.New("usage: /form <name>|<address>|<date>")
		}
		return Command{Form: &domain.FormSubmission{
			Name:           strings.TrimSpace(parts[0]),
			Address:        strings.TrimSpace(parts[1]),
			PreferredDate:  strings.TrimSpace(parts[2]),
			ChannelAddress: from,
		}}, nil
	default:
		return Command{}, fmt.Errorf("%w %s (try /help)", ErrUnknownCommand, name)
	}
}

func parseCoordinates(arg string) (float64, float64, error) {
	latStr, lngStr, ok := strings.Cut(arg, ",")
	if !ok {
		return 0, 0, errors.New("usage: /loc <lat>,<lng>")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	return lat, lng, nil
}

// Chat reads customer lines from in until EOF, /quit or ctx is done.
// Replies reach the terminal through the console gateway; Chat itself only
// writes the prompt and system messages to out.
func Chat(ctx context.Context, conv Conversation, in io.Reader, out io.Writer, from string, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := ParseLine(from, line)
		if err != nil {
			printSystemMessage(out, "%v", err)
			continue
		}

		var session *domain.Session
		switch {
		case cmd.Quit:
			printSystemMessage(out, "Bye!")
			return nil
		case cmd.Help:
			fmt.Fprintln(out, ChatHelp)
			continue
		case cmd.Form != nil:
			session, err = conv.SubmitForm(ctx, *cmd.Form)
		default:
			session, err = conv.Handle(ctx, *cmd.Signal)
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			printSystemMessage(out, "error: %v", err)
			continue
		}
		printSystemMessage(out, "stage: %s", session.Stage)
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, ">>> %s\n", fmt.Sprintf(format, args...))
}
