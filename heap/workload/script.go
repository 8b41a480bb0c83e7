package workload

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/joshuapare/heapkit/heap/alloc"
)

const (
	// CommentPrefix starts a comment at line start or after whitespace; the
	// rest of the line is ignored.
	CommentPrefix = "#"

	// MaxLineSize bounds a single script line.
	MaxLineSize = 64 << 10
)

// Op identifies a script command.
type Op uint8

const (
	OpAlloc  Op = iota // alloc NAME SIZE
	OpFree             // free NAME
	OpConfig           // config STRATEGY LIMIT
	OpStats            // stats
	OpVerify           // verify
)

var opNames = [...]string{
	OpAlloc:  "alloc",
	OpFree:   "free",
	OpConfig: "config",
	OpStats:  "stats",
	OpVerify: "verify",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Command is one parsed script line.
type Command struct {
	Op       Op
	Line     int // 1-based source line; 0 for generated commands
	Name     string
	Size     int
	Strategy alloc.Strategy
	Limit    uint64
}

func (c Command) String() string {
	switch c.Op {
	case OpAlloc:
		return fmt.Sprintf("alloc %s %d", c.Name, c.Size)
	case OpFree:
		return "free " + c.Name
	case OpConfig:
		return fmt.Sprintf("config %s %d", c.Strategy, c.Limit)
	default:
		return c.Op.String()
	}
}

// Script is an ordered list of commands.
type Script []Command

// WriteTo writes s in the text format Parse reads.
func (s Script) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, c := range s {
		m, err := fmt.Fprintln(w, c.String())
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ParseError reports a malformed script line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("workload: line %d: %s", e.Line, e.Msg)
}

// Parse reads a workload script. One command per line:
//
//	alloc NAME SIZE       allocate SIZE bytes and bind the handle to NAME
//	free NAME             release the block bound to NAME
//	config STRATEGY LIMIT switch strategy (first|best|worst) and arena limit
//	stats                 print free-space statistics
//	verify                check allocator invariants
//
// Blank lines are ignored, and # starts a comment at the beginning of a line
// or after whitespace. Input may be UTF-8 or,
// when it starts with a byte order mark, UTF-16.
func Parse(r io.Reader) (Script, error) {
	// Scripts saved by Windows editors often carry a BOM (or are UTF-16).
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)

	var script Script
	line := 0
	for scanner.Scan() {
		line++
		text := stripComment(scanner.Text())
		if text == "" {
			continue
		}

		cmd, err := parseLine(text)
		if err != nil {
			return nil, &ParseError{Line: line, Msg: err.Error()}
		}
		cmd.Line = line
		script = append(script, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("workload: scanning script: %w", err)
	}
	return script, nil
}

// stripComment drops a # comment and surrounding space. # opens a comment
// only at the start of a line or after whitespace; inside a word it is an
// ordinary character.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != CommentPrefix[0] {
			continue
		}
		if i == 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			line = line[:i]
			break
		}
	}
	return strings.TrimSpace(line)
}

func parseLine(text string) (Command, error) {
	fields := strings.Fields(text)
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d argument(s), got %d", verb, n, len(args))
		}
		return nil
	}

	switch verb {
	case "alloc":
		if err := want(2); err != nil {
			return Command{}, err
		}
		size, err := strconv.Atoi(args[1])
		if err != nil {
			return Command{}, fmt.Errorf("alloc %s: bad size %q", args[0], args[1])
		}
		return Command{Op: OpAlloc, Name: args[0], Size: size}, nil

	case "free":
		if err := want(1); err != nil {
			return Command{}, err
		}
		return Command{Op: OpFree, Name: args[0]}, nil

	case "config":
		if err := want(2); err != nil {
			return Command{}, err
		}
		s, err := alloc.ParseStrategy(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("config: unknown strategy %q", args[0])
		}
		limit, err := ParseSize(args[1])
		if err != nil {
			return Command{}, fmt.Errorf("config: bad limit %q", args[1])
		}
		return Command{Op: OpConfig, Strategy: s, Limit: limit}, nil

	case "stats":
		if err := want(0); err != nil {
			return Command{}, err
		}
		return Command{Op: OpStats}, nil

	case "verify":
		if err := want(0); err != nil {
			return Command{}, err
		}
		return Command{Op: OpVerify}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q", fields[0])
}

// ParseSize parses a byte count with an optional K, M or G suffix (powers
// of 1024), e.g. "4096", "64K", "1m".
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	shift := 0
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			shift = 10
		case 'm', 'M':
			shift = 20
		case 'g', 'G':
			shift = 30
		}
		if shift != 0 {
			s = s[:n-1]
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if shift != 0 && v > (^uint64(0))>>shift {
		return 0, fmt.Errorf("size %s overflows", s)
	}
	return v << shift, nil
}
