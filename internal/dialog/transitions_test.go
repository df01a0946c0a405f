package dialog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/repository"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/internal/validation"
)

// sampleInputs returns every button label in every language plus free text.
func sampleInputs(t *testing.T, catalog *i18n.Manager) []string {
	t.Helper()

	inputs := []string{
		"", "   ", "привет", "короче", "сломался компьютер после обновления",
		"89991234567", "+7 (999) 123-45-67", "12345", "5", "⭐⭐", "0",
		"Заявка №1", "Заявка №2", "Заявка №3", "Заявка №999",
		"подтвердить", "нет", "бизнес", "частное лицо",
	}

	for _, lang := range catalog.Languages() {
		tr := catalog.Translator(lang)
		for _, key := range catalog.Keys(lang) {
			if strings.HasPrefix(key, "buttons.") && key != "buttons.order" {
				inputs = append(inputs, tr.T(key))
			}
		}
	}
	return inputs
}

func TestHandlersStayWithinTransitionTable(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)

	own := seedOrder(t, store, testUserID, "настроить принтер")
	cancelled := seedOrder(t, store, testUserID, "починить ноутбук")
	_, err := store.CancelOrder(context.Background(), cancelled)
	require.NoError(t, err)
	seedOrder(t, store, 999, "чужая заявка")

	flows := map[string]state.Flow{
		"empty": {},
		"filled": {
			Kind:         state.ServiceBusiness,
			BusinessType: "кофейня",
			Task:         "настроить кассу",
			Phone:        "+7 (999) 123-45-67",
			OrderID:      own,
			ResumeState:  state.StateContactInput,
		},
		"cancelled order": {
			Kind:    state.ServicePersonal,
			OrderID: cancelled,
		},
	}

	inputs := sampleInputs(t, i18n.MustDefault())

	for _, s := range state.All() {
		for name, flow := range flows {
			for _, text := range inputs {
				if _, isCommand := state.MatchCommand(text); isCommand {
					continue
				}

				us := userIn(s)
				us.Flow = flow
				tt := &turn{
					ctx:     context.Background(),
					user:    us,
					text:    validation.CleanText(text),
					tr:      e.catalog.Translator(""),
					catalog: e.catalog,
				}

				reply, err := e.dispatch(tt)
				require.NoError(t, err)

				allowed := reply.State == s || state.IsTransitionAllowed(s, reply.State)
				assert.True(t, allowed, "%s --%q--> %s with %s flow", s, text, reply.State, name)
				assert.NotEmpty(t, reply.Text, "%s --%q--> with %s flow", s, text, name)
			}
		}
	}
}

func TestEveryStateHasMessageAndHints(t *testing.T) {
	catalog := i18n.MustDefault()

	for _, lang := range catalog.Languages() {
		keys := make(map[string]bool)
		for _, key := range catalog.Keys(lang) {
			keys[key] = true
		}

		for _, s := range state.All() {
			assert.True(t, keys[state.MessageKey(s)], "%s: no message for %s", lang, s)
			_, ok := stateHints[s]
			assert.True(t, ok, "no hints for %s", s)
		}
	}
}
