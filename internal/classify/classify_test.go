package classify

import "testing"

func TestCategorize(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		content     string
		want        string
	}{
		{
			name:  "malware keyword",
			title: "Nuevo troyano bancario roba credenciales",
			want:  "Malware",
		},
		{
			name:        "cve in description",
			title:       "Alerta urgente para administradores",
			description: "El fallo CVE-2024-3094 permite ejecución remota",
			want:        "Vulnerabilidades",
		},
		{
			name:  "ransomware lands in attacks",
			title: "Un grupo de ransomware paraliza un ayuntamiento",
			want:  "Ataques",
		},
		{
			name:  "data breach",
			title: "Confirmada la filtración de millones de registros",
			want:  "Brechas de datos",
		},
		{
			name:  "regulation",
			title: "La nueva normativa europea de resiliencia entra en vigor",
			want:  "Regulación",
		},
		{
			name:  "critical infrastructure",
			title: "Corte de energía afecta a media ciudad",
			want:  "Infraestructura crítica",
		},
		{
			name:  "business",
			title: "Una compañía del IBEX refuerza su seguridad",
			want:  "Empresas",
		},
		{
			name:  "technology",
			title: "Llega una plataforma de detección basada en IA",
			want:  "Tecnología",
		},
		{
			name:  "education",
			title: "Campaña de concienciación para universitarios",
			want:  "Educación",
		},
		{
			name:  "no match",
			title: "Entrevista al nuevo director del organismo",
			want:  Default,
		},
		{
			name:    "matches content when title is generic",
			title:   "Lo que debes saber hoy",
			content: "Se ha descubierto un nuevo spyware en tiendas oficiales",
			want:    "Malware",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.title, tt.description, tt.content)
			if got != tt.want {
				t.Errorf("Categorize = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorizeRuleOrder(t *testing.T) {
	// Mentions attacks, infrastructure and technology at once; the attack
	// rule is checked before both.
	got := Categorize("Nuevo ransomware ataca infraestructura tecnológica", "", "")
	if got != "Ataques" {
		t.Errorf("expected 'Ataques' for multi-category headline, got %q", got)
	}

	// Malware beats attacks when both match.
	got = Categorize("Botnet lanza un ciberataque coordinado", "", "")
	if got != "Malware" {
		t.Errorf("expected 'Malware' to win over 'Ataques', got %q", got)
	}
}

func TestCategorizeCaseInsensitive(t *testing.T) {
	if got := Categorize("PHISHING masivo contra clientes", "", ""); got != "Ataques" {
		t.Errorf("expected case-insensitive match, got %q", got)
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	if len(cats) != 10 {
		t.Fatalf("expected 10 categories, got %d", len(cats))
	}
	if cats[0] != "Malware" {
		t.Errorf("expected 'Malware' first, got %q", cats[0])
	}
	if cats[len(cats)-1] != Default {
		t.Errorf("expected %q last, got %q", Default, cats[len(cats)-1])
	}
}
