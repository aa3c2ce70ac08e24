package refgraph

import (
	"fmt"
	"strings"
)

// ObjectID identifies an object in a simulator arena. IDs are allocated
// sequentially starting at 1 and are never reused.
type ObjectID uint64

// Root is the program-lifetime holder. It is not an object and is never
// destroyed.
const Root ObjectID = 0

// RefID identifies a reference. IDs start at 1 and are never reused.
type RefID uint64

// RefKind is the ownership semantics of a reference.
type RefKind uint8

const (
	// Strong references keep their target alive.
	Strong RefKind = iota + 1
	// Weak references read as empty once their target is destroyed.
	Weak
	// Unowned references are never emptied; reading a destroyed target is fatal.
	Unowned
)

func (k RefKind) String() string {
	switch k {
	case Strong:
		return "strong"
	case Weak:
		return "weak"
	case Unowned:
		return "unowned"
	default:
		return fmt.Sprintf("RefKind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k RefKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RefKind) UnmarshalText(text []byte) error {
	parsed, err := ParseRefKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseRefKind parses "strong", "weak" or "unowned" (case-insensitive).
func ParseRefKind(s string) (RefKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strong":
		return Strong, nil
	case "weak":
		return Weak, nil
	case "unowned":
		return Unowned, nil
	default:
		return 0, fmt.Errorf("unknown reference kind %q (expected strong, weak or unowned)", s)
	}
}

// State is an object's lifecycle state. The only transition is
// Live -> Destroyed.
type State uint8

const (
	Live State = iota + 1
	Destroyed
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
