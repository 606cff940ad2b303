package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"statusbot/internal/model"
)

// Command is a parsed operator command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand extracts a status command from raw message content.
// Commands look like "<prefix>status <name> [args...]". Arguments may
// be wrapped in double quotes or backticks so regex patterns can carry
// whitespace.
func ParseCommand(content, prefix string) (Command, bool) {
	if !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}
	fields := splitArgs(strings.TrimSpace(content[len(prefix):]))
	if len(fields) == 0 || !strings.EqualFold(fields[0], "status") {
		return Command{}, false
	}
	if len(fields) == 1 {
		return Command{Name: "help"}, true
	}
	return Command{Name: strings.ToLower(fields[1]), Args: fields[2:]}, true
}

// ParseSecondsArg parses the optional argument of interval-style
// commands. No argument means "show the current value" (set=false).
func ParseSecondsArg(args []string) (int, bool, error) {
	if len(args) == 0 {
		return 0, false, nil
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", args[0])
	}
	if secs < model.MinIntervalSeconds {
		return 0, false, fmt.Errorf("value must be at least %d seconds", model.MinIntervalSeconds)
	}
	return secs, true, nil
}

func splitArgs(s string) []string {
	var args []string
	var cur strings.Builder
	var quote rune

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				args = append(args, cur.String())
				cur.Reset()
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '`':
			quote = r
		case unicode.IsSpace(r):
			if cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args
}
