package ir

import "fmt"

// Location is a source position carried by a Value when debug info is
// enabled (spec.md §6 enable_debug_info), or the bytecode offset that
// produced a Value regardless of debug info (used in error messages).
type Location struct {
	MethodName string
	Offset     int // bytecode instruction offset
	File       string
	Line       int
}

func (l Location) String() string {
	if l.File != "" {
		return fmt.Sprintf("%s:%d (%s+%#x)", l.File, l.Line, l.MethodName, l.Offset)
	}
	return fmt.Sprintf("%s+%#x", l.MethodName, l.Offset)
}
