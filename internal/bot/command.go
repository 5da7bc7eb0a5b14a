// Package bot implements the message router of the group chat: command
// parsing, handler dispatch against the services, and the Portuguese reply
// formatting. The router receives normalized messages from the webhook layer
// and returns reply text; delivery stays in the gateway.
package bot

import "strings"

// Command is the closed set of chat commands.
type Command string

const (
	CmdUnknown Command = ""
	CmdStatus  Command = "!status"
	CmdToggle  Command = "!alterna"
	CmdStats   Command = "!stats"
	CmdHelp    Command = "!ajuda"
	CmdYes     Command = "!sim"
	CmdNo      Command = "!nao"
	CmdPassed  Command = "!passou"
	CmdCancel  Command = "!cancelar"
	CmdWindow  Command = "!tempo"
)

// Message is one normalized inbound chat message.
type Message struct {
	Text   string
	Sender string
}

// IsCommand reports whether the message text starts with the command prefix.
func (m Message) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "!")
}

// ParseCommand splits text into a known command and its argument string.
// Unrecognized commands return CmdUnknown with the raw first token as arg.
func ParseCommand(text string) (Command, string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return CmdUnknown, ""
	}
	head := strings.ToLower(fields[0])
	arg := strings.Join(fields[1:], " ")

	switch Command(head) {
	case CmdStatus, CmdToggle, CmdStats, CmdHelp,
		CmdYes, CmdNo, CmdPassed, CmdCancel, CmdWindow:
		return Command(head), arg
	}
	// Accent-tolerant aliases people actually type.
	switch head {
	case "!não":
		return CmdNo, arg
	case "!ajudar":
		return CmdHelp, arg
	}
	return CmdUnknown, fields[0]
}

// Phrases in free text that read as "the last cars finished clearing".
// Matching one while a transition is active proposes completion through the
// confirmation workflow.
var clearingPhrases = []string{
	"últimos carros", "ultimos carros",
	"terminando de passar", "quase terminando",
	"falta pouco", "já tá acabando", "ja ta acabando",
	"passou todo mundo", "todos passaram",
	"pista limpa", "não tem mais ninguém", "nao tem mais ninguem",
}

// Phrases in free text that read as "I am closing my side down".
// Matching one begins a transition on the endpoint that holds right of way.
var closingPhrases = []string{
	"vou fechar", "fechando aqui",
	"segurando o pessoal", "parando o fluxo",
}

// MentionsClearing reports whether text claims the lane finished clearing.
func MentionsClearing(text string) bool {
	return mentionsAny(text, clearingPhrases)
}

// MentionsClosing reports whether text announces a closedown.
func MentionsClosing(text string) bool {
	return mentionsAny(text, closingPhrases)
}

func mentionsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
