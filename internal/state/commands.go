package state

import "strings"

// Command is a global interrupt recognized in every state.
type Command string

const (
	CommandRestart Command = "restart"
	CommandMenu    Command = "menu"
	CommandHelp    Command = "help"
	CommandCancel  Command = "cancel"
)

var globalCommands = map[string]Command{
	"/start":         CommandRestart,
	"начать":         CommandRestart,
	"start":          CommandRestart,
	"/menu":          CommandMenu,
	"меню":           CommandMenu,
	"в главное меню": CommandMenu,
	"назад в меню":   CommandMenu,
	"menu":           CommandMenu,
	"main menu":      CommandMenu,
	"/help":          CommandHelp,
	"помощь":         CommandHelp,
	"help":           CommandHelp,
	"/cancel":        CommandCancel,
	"отмена":         CommandCancel,
	"отменить":       CommandCancel,
	"cancel":         CommandCancel,
}

var commandTargets = map[Command]State{
	CommandRestart: StateStart,
	CommandMenu:    StateMainMenu,
	CommandHelp:    StateHelp,
	CommandCancel:  StateCancelConfirmation,
}

// MatchCommand reports whether text is a global command token.
func MatchCommand(text string) (Command, bool) {
	token := strings.ToLower(strings.Join(strings.Fields(text), " "))
	// Deep links carry a payload (/start site) and group chats append the
	// bot name (/start@bot).
	if strings.HasPrefix(token, "/") {
		if sp := strings.IndexByte(token, ' '); sp > 0 {
			token = token[:sp]
		}
		if at := strings.IndexByte(token, '@'); at > 0 {
			token = token[:at]
		}
	}

	cmd, ok := globalCommands[token]
	return cmd, ok
}

// Target returns the state a command jumps to.
func (c Command) Target() State {
	if target, ok := commandTargets[c]; ok {
		return target
	}
	return StateMainMenu
}
