package session

import "strings"

// CommandKind tags the variants of the fixed command vocabulary. Free text
// that matches no token becomes an explicit ad-hoc query variant instead of
// falling through untyped branching.
type CommandKind int

const (
	CmdAdHocQuery CommandKind = iota
	CmdSetTopics
	CmdBriefing
	CmdToggleAudio
	CmdShowPreferences
	CmdShowStats
	CmdClearHistory
	CmdStop
	CmdUnknown
)

// Command is one parsed inbound message.
type Command struct {
	Kind CommandKind
	Args string
}

var commandTokens = map[string]CommandKind{
	"/topics":      CmdSetTopics,
	"/briefing":    CmdBriefing,
	"/audio":       CmdToggleAudio,
	"/preferences": CmdShowPreferences,
	"/pref":        CmdShowPreferences,
	"/stats":       CmdShowStats,
	"/clear":       CmdClearHistory,
	"/stop":        CmdStop,
}

// Parse maps message text onto the command vocabulary. Anything not
// starting with a known token is an ad-hoc query.
func Parse(text string) Command {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CmdAdHocQuery, Args: trimmed}
	}

	token := trimmed
	args := ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		token, args = trimmed[:i], strings.TrimSpace(trimmed[i+1:])
	}

	kind, ok := commandTokens[strings.ToLower(token)]
	if !ok {
		return Command{Kind: CmdUnknown, Args: trimmed}
	}
	return Command{Kind: kind, Args: args}
}
