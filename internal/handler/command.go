package handler

import "strings"

const (
	CommandPlay   = "play"
	CommandSkip   = "skip"
	CommandStop   = "stop"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandQueue  = "queue"
)

// ParseCommand splits a message into a command keyword and its arguments.
// The keyword is the first whitespace-separated token with prefix removed;
// it is matched case-sensitively by the dispatcher. ok is false when the
// message is not a command.
func ParseCommand(prefix, content string) (command string, args []string, ok bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], prefix) {
		return "", nil, false
	}
	command = strings.TrimPrefix(fields[0], prefix)
	if command == "" {
		return "", nil, false
	}
	return command, fields[1:], true
}
