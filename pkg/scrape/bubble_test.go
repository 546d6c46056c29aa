package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBubbleTextDedupesInOrder(t *testing.T) {
	b := Bubble{Fragments: [][]string{
		{" Olá "},
		{"", "Olá"},
		{},
		{"arquivo.pdf", "Anexo"},
		{"arquivo.pdf"},
	}}
	require.Equal(t, "Olá | arquivo.pdf | Anexo", b.Text())
	require.Equal(t, "", Bubble{}.Text())
}

func TestBubbleTimestampPrefersTitle(t *testing.T) {
	require.Equal(t, "27/10/2025 10:54", Bubble{TimeTitle: " 27/10/2025 10:54 ", MsgTime: "2025-10-27T10:54:00"}.Timestamp())
	require.Equal(t, "2025-10-27T10:54:00", Bubble{MsgTime: "2025-10-27T10:54:00"}.Timestamp())
	require.Equal(t, "", Bubble{}.Timestamp())
}

func TestHarvestDedupesByIdentifier(t *testing.T) {
	h := newHarvest()
	first := Bubble{ID: "msgBubble_1", Fragments: [][]string{{"primeira"}}}
	again := Bubble{ID: "msgBubble_1", Fragments: [][]string{{"re-render"}}}

	require.Equal(t, 1, h.add([]Bubble{first}))
	require.Equal(t, 0, h.add([]Bubble{again}))
	require.Equal(t, 1, h.add([]Bubble{again, {ID: "msgBubble_2"}}))
	require.Equal(t, 2, h.len())
	require.Equal(t, "primeira", h.bubbles()[0].Text())
}

func TestHarvestKeepsDocumentOrder(t *testing.T) {
	h := newHarvest()
	ids := func(ks ...string) []Bubble {
		out := []Bubble{}
		for _, k := range ks {
			out = append(out, Bubble{ID: k})
		}
		return out
	}
	h.add(ids("m5", "m6", "m7"))
	h.add(ids("m2", "m3", "m4", "m5"))
	h.add(ids("m1", "m2"))
	h.add(ids("m7", "m8"))

	got := []string{}
	for _, b := range h.bubbles() {
		got = append(got, b.ID)
	}
	require.Equal(t, []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8"}, got)
}

func TestHarvestKeysNoticesByContent(t *testing.T) {
	h := newHarvest()
	notice := Bubble{SystemMarkup: true, TimeTitle: "Hoje", Fragments: [][]string{{"Você reabriu o chat"}}}
	require.Equal(t, 1, h.add([]Bubble{notice, notice}))
	require.Equal(t, 1, h.add([]Bubble{{SystemMarkup: true, Fragments: [][]string{{"Chat encerrado"}}}}))
}

func TestParseDetails(t *testing.T) {
	d := ParseDetails(PanelText{
		Email: "E-mail ana.souza@example.com.br",
		Phone: "Celular +55 11 99999-0000",
		Owner: "Proprietário do Contato Caroline Lima",
	})
	require.Equal(t, "ana.souza@example.com.br", d.Email)
	require.Equal(t, "+55 11 99999-0000", d.Phone)
	require.Equal(t, "Caroline Lima", d.Owner)

	require.True(t, ParseDetails(PanelText{Email: "sem email"}).IsZero())
}
