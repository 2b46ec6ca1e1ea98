package dashboard

import (
	"bytes"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// FAQEntry is one question of the help sidebar. Answer holds sanitized HTML.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var faqSource = []FAQEntry{
	{
		Question: "Como abrir um novo chamado?",
		Answer:   "Clique no botão **'Abrir Novo Chamado'** no dashboard. Preencha o título, descrição detalhada do problema e selecione a prioridade adequada.",
	},
	{
		Question: "Qual o tempo de resposta para chamados?",
		Answer:   "Chamados de alta prioridade: até 2 horas. Média prioridade: até 8 horas. Baixa prioridade: até 24 horas.",
	},
	{
		Question: "Como acompanhar o status do meu chamado?",
		Answer:   "Você pode visualizar todos os seus chamados na seção **'Meus Chamados'** do dashboard, onde mostra o status atual e histórico.",
	},
	{
		Question: "Posso alterar a prioridade de um chamado?",
		Answer:   "Não é possível alterar a prioridade após a criação. Se necessário, entre em contato com o suporte.",
	},
}

var (
	faqOnce     sync.Once
	faqRendered []FAQEntry
	faqErr      error
)

// FAQ returns the help entries with answers rendered from Markdown.
func FAQ() ([]FAQEntry, error) {
	faqOnce.Do(func() {
		faqRendered, faqErr = renderFAQ(faqSource)
	})
	if faqErr != nil {
		return nil, faqErr
	}
	out := make([]FAQEntry, len(faqRendered))
	copy(out, faqRendered)
	return out, nil
}

func renderFAQ(entries []FAQEntry) ([]FAQEntry, error) {
	md := goldmark.New()
	policy := bluemonday.UGCPolicy()

	out := make([]FAQEntry, 0, len(entries))
	for _, entry := range entries {
		html, err := RenderMarkdown(md, policy, entry.Answer)
		if err != nil {
			return nil, err
		}
		out = append(out, FAQEntry{Question: entry.Question, Answer: html})
	}
	return out, nil
}

// RenderMarkdown converts source to HTML and strips anything policy rejects.
func RenderMarkdown(md goldmark.Markdown, policy *bluemonday.Policy, source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(policy.SanitizeBytes(buf.Bytes()))), nil
}
