package classify

import (
	"regexp"
	"strings"
)

// Default is assigned when no rule matches.
const Default = "Otros"

// Rule order is load-bearing: the first matching rule wins, so a ransomware
// headline that also mentions software lands in "Ataques", not "Tecnología".
var rules = []struct {
	category string
	re       *regexp.Regexp
}{
	{"Malware", regexp.MustCompile(`malware|virus|gusano|troyano|spyware|adware|rootkit|botnet`)},
	{"Vulnerabilidades", regexp.MustCompile(`vulnerabilidad|cve-|zero[- ]day|exploit|parche|patch|fallo de seguridad|bug`)},
	{"Ataques", regexp.MustCompile(`ataque|ransomware|phishing|ddos|suplantaci[oó]n|hackeo|ciberataque|intrusi[oó]n`)},
	{"Brechas de datos", regexp.MustCompile(`brecha de datos|filtraci[oó]n|exposici[oó]n de datos|leak|data breach`)},
	{"Regulación", regexp.MustCompile(`regulaci[oó]n|gdpr|ley|normativa|compliance|protecci[oó]n de datos`)},
	{"Infraestructura crítica", regexp.MustCompile(`infraestructura cr[ií]tica|energ[ií]a|agua|transporte|sanidad|hospital|eléctrica|eléctrico`)},
	{"Empresas", regexp.MustCompile(`empresa|compañ[ií]a|corporativo|negocio|sector privado|empleado`)},
	{"Tecnología", regexp.MustCompile(`tecnolog[ií]a|innovaci[oó]n|software|hardware|sistema|plataforma|aplicaci[oó]n`)},
	{"Educación", regexp.MustCompile(`educaci[oó]n|concienciaci[oó]n|formaci[oó]n|curso|capacitaci[oó]n`)},
}

// Categorize assigns exactly one category to an article based on its combined
// title, description and content text.
func Categorize(title, description, content string) string {
	text := strings.ToLower(title + " " + description + " " + content)
	for _, r := range rules {
		if r.re.MatchString(text) {
			return r.category
		}
	}
	return Default
}

// Categories lists every label Categorize can return, in rule order.
func Categories() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, Default)
}
