package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/openmined/davsync/internal/pairstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(m tea.Model, s string) tea.Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func press(m tea.Model, k tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: k})
}

func TestLoginModel_StartsAtFirstEmptyField(t *testing.T) {
	m := newLoginModel(&LoginTUIOpts{ServerURL: "https://dav.example.com"})
	assert.Equal(t, fieldLogin, m.focus)

	m = newLoginModel(&LoginTUIOpts{ServerURL: "https://dav.example.com", Login: "alice"})
	assert.Equal(t, fieldPassword, m.focus)
}

func TestLoginModel_Submit(t *testing.T) {
	var got pairstore.Credentials
	calls := 0
	opts := &LoginTUIOpts{
		SubmitHandler: func(c pairstore.Credentials) error {
			calls++
			got = c
			if c.Password != "secret" {
				return errors.New("401 Unauthorized")
			}
			return nil
		},
	}

	var m tea.Model = newLoginModel(opts)
	m = typeText(m, "https://dav.example.com")
	m, _ = press(m, tea.KeyEnter)
	m = typeText(m, "alice")
	m, _ = press(m, tea.KeyEnter)

	// empty password is rejected before calling the server
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, txtEmptyField, m.(loginModel).errorMessage)

	m = typeText(m, "wrong")
	m, cmd = press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.(loginModel).isLoading)
	m, _ = m.Update(cmd())
	assert.Contains(t, m.(loginModel).errorMessage, "401 Unauthorized")
	assert.False(t, m.(loginModel).done)

	lm := m.(loginModel)
	lm.inputs[fieldPassword].SetValue("secret")
	m, cmd = press(lm, tea.KeyEnter)
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.True(t, m.(loginModel).done)

	assert.Equal(t, 2, calls)
	assert.Equal(t, pairstore.Credentials{ServerURL: "https://dav.example.com", Login: "alice", Password: "secret"}, got)
	assert.Contains(t, m.View(), "davsync login")
}

func TestLoginModel_FocusWraps(t *testing.T) {
	var m tea.Model = newLoginModel(&LoginTUIOpts{})
	m, _ = press(m, tea.KeyShiftTab)
	assert.Equal(t, fieldPassword, m.(loginModel).focus)
	m, _ = press(m, tea.KeyTab)
	assert.Equal(t, fieldServer, m.(loginModel).focus)
}
