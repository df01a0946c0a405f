package bot

import (
	"fmt"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/i18n"
)

// Commands shown in the Telegram menu. The dialog recognizes them as text.
const (
	CommandStart  = "start"
	CommandMenu   = "menu"
	CommandHelp   = "help"
	CommandCancel = "cancel"
)

var menuCommands = []string{CommandStart, CommandMenu, CommandHelp, CommandCancel}

// commandList describes the menu commands in one language.
func commandList(tr i18n.Translator) []telebot.Command {
	out := make([]telebot.Command, 0, len(menuCommands))
	for _, name := range menuCommands {
		out = append(out, telebot.Command{
			Text:        name,
			Description: tr.T("commands." + name),
		})
	}
	return out
}

// registerCommands publishes the command menu for every catalog language.
// The default language is also registered without a language code.
func registerCommands(tb *telebot.Bot, catalog *i18n.Manager, defaultLang string) error {
	if err := tb.SetCommands(commandList(catalog.Translator(defaultLang))); err != nil {
		return fmt.Errorf("set default commands: %w", err)
	}
	for _, lang := range catalog.Languages() {
		if err := tb.SetCommands(commandList(catalog.Translator(lang)), lang); err != nil {
			return fmt.Errorf("set %s commands: %w", lang, err)
		}
	}
	return nil
}
