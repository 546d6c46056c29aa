package operator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("63")).
			Padding(0, 2)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (c *Console) Banner(title, subtitle string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, bannerStyle.Render(title))
	if subtitle != "" {
		fmt.Fprintln(c.out, keyStyle.Render(subtitle))
	}
	fmt.Fprintln(c.out)
}

func (c *Console) Section(title string) {
	fmt.Fprintf(c.out, "\n%s\n%s\n", sectionStyle.Render(title), strings.Repeat("─", lipgloss.Width(title)))
}

// Summary describes one processing pass for the closing box.
type Summary struct {
	ClientName string
	Messages   int
	Characters int
	Provider   string
	Model      string
	ReplyFile  string
	Exports    map[string]string
	Close      bool
	Duration   time.Duration
	Err        error
	At         time.Time
}

func (c *Console) Summary(s Summary) {
	status := okStyle.Render("OK concluído")
	if s.Err != nil {
		status = errorStyle.Render("ERRO " + s.Err.Error())
	}
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	rows := [][2]string{
		{"Status", status},
		{"Cliente", s.ClientName},
		{"Mensagens", fmt.Sprintf("%d", s.Messages)},
		{"Tamanho", fmt.Sprintf("%d caracteres", s.Characters)},
		{"Tempo", fmt.Sprintf("%.1f segundos", s.Duration.Seconds())},
		{"Data/Hora", at.Format("02/01/2006 às 15:04:05")},
	}
	if s.Provider != "" {
		p := s.Provider
		if s.Model != "" {
			p += " (" + s.Model + ")"
		}
		rows = append(rows, [2]string{"Gerador", p})
	}
	if s.ReplyFile != "" {
		rows = append(rows, [2]string{"Resposta", s.ReplyFile})
	}
	formats := make([]string, 0, len(s.Exports))
	for f := range s.Exports {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	for _, f := range formats {
		rows = append(rows, [2]string{strings.ToUpper(f), s.Exports[f]})
	}
	if s.Close {
		rows = append(rows, [2]string{"Encerramento", "sugerido"})
	}

	var b strings.Builder
	b.WriteString(sectionStyle.Render("RESUMO DA EXECUÇÃO"))
	for _, r := range rows {
		fmt.Fprintf(&b, "\n%s %s", keyStyle.Render(r[0]+":"), r[1])
	}
	fmt.Fprintln(c.out, boxStyle.Render(b.String()))
}

// ShowReply prints the drafted reply, rendered as markdown on a terminal.
func (c *Console) ShowReply(text string) {
	c.Section("RESPOSTA SUGERIDA")
	if c.interactive {
		if styled, err := glamour.Render(text, "dark"); err == nil {
			fmt.Fprint(c.out, styled)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

// Println writes a plain line.
func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}
