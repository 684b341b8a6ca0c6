package protocol

import "sort"

type Command string

const (
	SET    Command = "set"
	GET    Command = "get"
	DELETE Command = "delete"
	MERGE  Command = "merge"
)

// arities maps every recognised command to the exact number of arguments it
// takes. Adding a command to the protocol is a one line change here.
var arities = map[Command]int{
	SET:    2,
	GET:    1,
	DELETE: 1,
	MERGE:  0,
}

// Arity returns the number of arguments cmd requires and whether cmd is a
// recognised command at all.
func Arity(cmd Command) (int, bool) {
	n, ok := arities[cmd]
	return n, ok
}

// Commands returns the recognised command names in lexical order.
func Commands() []Command {
	cmds := make([]Command, 0, len(arities))
	for cmd := range arities {
		cmds = append(cmds, cmd)
	}

	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}
