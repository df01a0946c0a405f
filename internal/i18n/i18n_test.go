package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_LanguagesShareKeys(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, m.Languages())
	assert.Equal(t, m.Keys("ru"), m.Keys("en"))
}

func TestTranslator_Fallback(t *testing.T) {
	fsys := fstest.MapFS{
		"loc/ru.yaml": {Data: []byte("ru:\n  greet: \"Привет, {name}!\"\n  only_ru: \"только тут\"\n")},
		"loc/en.yml":    {Data: []byte("en:\n  greet: \"Hi, {name}!\"\n")},
		"loc/notes.txt": {Data: []byte("ignored")},
	}

	m, err := LoadFS(fsys, "loc", "ru")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		lang     string
		key      string
		expected string
	}{
		{name: "own language", lang: "en", key: "greet", expected: "Hi, {name}!"},
		{name: "falls back to default language", lang: "en", key: "only_ru", expected: "только тут"},
		{name: "unknown language uses default", lang: "de", key: "greet", expected: "Привет, {name}!"},
		{name: "missing key returns key", lang: "ru", key: "missing.key", expected: "missing.key"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, m.Translator(tc.lang).T(tc.key))
		})
	}

	assert.Equal(t, "Hi, Anna!", m.Translator("EN").Tf("greet", Vars{"name": "Anna"}))
}

func TestLoadFS_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"loc/readme.md": {Data: []byte("x")}}, "loc", "ru")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"loc/en.yaml": {Data: []byte("en:\n  a: b\n")}}, "loc", "ru")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"loc/ru.yaml": {Data: []byte("ru: [")}}, "loc", "ru")
	assert.Error(t, err)
}

func TestManager_Matches(t *testing.T) {
	m := MustDefault()

	assert.True(t, m.Matches("Создать заявку", "buttons.new_order"))
	assert.True(t, m.Matches("  создать   ЗАЯВКУ ", "buttons.new_order"))
	assert.True(t, m.Matches("New request", "buttons.new_order"))
	assert.False(t, m.Matches("Мои заявки", "buttons.new_order"))
	assert.False(t, m.Matches("", "buttons.new_order"))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "№42 для Ивана", Render("№{order_id} для {name}", Vars{"order_id": "42", "name": "Ивана"}))
	assert.Equal(t, "{unknown}", Render("{unknown}", Vars{"name": "x"}))
	assert.Equal(t, "plain", Render("plain", nil))
}
