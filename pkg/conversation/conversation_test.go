package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleThreeMessageChat(t *testing.T) {
	msgs := []Message{
		{AuthorType: AuthorAgent, AuthorName: "Caroline", Text: "Olá, posso ajudar?", Timestamp: "27/10/2025 10:55"},
		{AuthorType: AuthorClient, AuthorName: "Ana", Text: "Oi", Timestamp: "27/10/2025 10:54"},
		{AuthorType: AuthorClient, AuthorName: "Ana", Text: "Quero atualizar o contrato", Timestamp: "27/10/2025 10:56"},
	}

	conv := Assemble("", "Ana", ClientDetails{}, msgs)

	require.Equal(t, "Quero atualizar o contrato", conv.LastClientMessage)
	require.Equal(t, "Olá, posso ajudar?", conv.LastAgentMessage)
	require.Equal(t, "Oi", conv.Messages[0].Text)
	require.Equal(t, "Olá, posso ajudar?", conv.Messages[1].Text)
	require.Equal(t, "27/10/2025 10:55", msgs[0].Timestamp, "input must not be reordered")
}

func TestLastTextSkipsEmptyAndOtherAuthors(t *testing.T) {
	msgs := []Message{
		{AuthorType: AuthorClient, Text: "primeira"},
		{AuthorType: AuthorAgent, Text: "resposta"},
		{AuthorType: AuthorClient, Text: "  "},
		{AuthorType: AuthorSystem, Text: "Chat encerrado"},
	}

	require.Equal(t, "primeira", LastText(msgs, AuthorClient))
	require.Equal(t, "resposta", LastText(msgs, AuthorAgent))
	require.Equal(t, "", LastText(nil, AuthorClient))
}

func TestLastClientMessageMatchesLastClientInSortedOrder(t *testing.T) {
	cases := [][]Message{
		nil,
		{{AuthorType: AuthorAgent, Text: "só agente", Timestamp: "1"}},
		{
			{AuthorType: AuthorClient, Text: "b", Timestamp: "2"},
			{AuthorType: AuthorClient, Text: "a", Timestamp: "2"},
			{AuthorType: AuthorAgent, Text: "c", Timestamp: "3"},
		},
		{
			{AuthorType: AuthorClient, Text: "x", Timestamp: ""},
			{AuthorType: AuthorSystem, Text: "y", Timestamp: "9"},
		},
	}
	for _, msgs := range cases {
		conv := Assemble("", "", ClientDetails{}, msgs)
		want := ""
		for _, m := range conv.Messages {
			if m.AuthorType == AuthorClient && m.Text != "" {
				want = m.Text
			}
		}
		require.Equal(t, want, conv.LastClientMessage)
	}
}

func TestSortMessagesTiesBrokenByText(t *testing.T) {
	msgs := []Message{
		{Text: "b", Timestamp: "10:00"},
		{Text: "a", Timestamp: "10:00"},
		{Text: "z", Timestamp: ""},
	}
	SortMessages(msgs)
	require.Equal(t, []string{"z", "a", "b"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text})
}

func TestNonSystemAndStats(t *testing.T) {
	conv := Assemble("c1", "Ana", ClientDetails{Email: "ana@x.com"}, []Message{
		{AuthorType: AuthorSystem, Text: "Hoje", Timestamp: "1"},
		{AuthorType: AuthorClient, Text: "Olá", Timestamp: "2"},
		{AuthorType: AuthorAgent, Text: "Bom dia", Timestamp: "3"},
	})

	require.Len(t, conv.NonSystem(), 2)
	st := conv.Stats()
	require.Equal(t, 3, st.Messages)
	require.Equal(t, 4+3+7, st.Characters)
	require.Equal(t, 1, st.ByAuthor[AuthorSystem])
	require.False(t, conv.ClientDetails.IsZero())
}
