package feed

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/gridloc/internal/worldmap"
)

// ErrMalformedCommand is returned for lines that are not a valid command.
var ErrMalformedCommand = errors.New("malformed command")

// Kind distinguishes sensor observations from motions.
type Kind int

const (
	KindSense Kind = iota + 1
	KindMove
)

func (k Kind) String() string {
	switch k {
	case KindSense:
		return "sense"
	case KindMove:
		return "move"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is one step of a filtering run.
type Command struct {
	Kind  Kind
	Color worldmap.Color // KindSense
	DY    int            // KindMove
	DX    int            // KindMove
	Line  int            // 1-based source line, 0 when unknown
}

func (c Command) String() string {
	if c.Kind == KindMove {
		return fmt.Sprintf("move %d %d", c.DY, c.DX)
	}
	return fmt.Sprintf("sense %s", c.Color)
}

// ParseCommand parses one feed line. It returns ok=false with a nil error
// for blank lines and '#' comments.
//
//	sense <color>     (alias: s)
//	move <dy> <dx>    (alias: m)
func ParseCommand(line string) (cmd Command, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Command{}, false, nil
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "sense", "s":
		if len(fields) != 2 {
			return Command{}, false, fmt.Errorf("%w: %q: sense takes one color", ErrMalformedCommand, line)
		}
		return Command{Kind: KindSense, Color: worldmap.Color(fields[1])}, true, nil

	case "move", "m":
		if len(fields) != 3 {
			return Command{}, false, fmt.Errorf("%w: %q: move takes dy and dx", ErrMalformedCommand, line)
		}
		dy, err := strconv.Atoi(fields[1])
		if err != nil {
			return Command{}, false, fmt.Errorf("%w: %q: bad dy: %v", ErrMalformedCommand, line, err)
		}
		dx, err := strconv.Atoi(fields[2])
		if err != nil {
			return Command{}, false, fmt.Errorf("%w: %q: bad dx: %v", ErrMalformedCommand, line, err)
		}
		return Command{Kind: KindMove, DY: dy, DX: dx}, true, nil

	default:
		return Command{}, false, fmt.Errorf("%w: %q: unknown keyword %q", ErrMalformedCommand, line, fields[0])
	}
}
