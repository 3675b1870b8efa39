// Package placeholder computes the {{identifier}} substitution map used to
// fill petition templates from a case and its benefits.
package placeholder

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fapdraft-backend/models"
)

// NotInformed is shown in previews for values the case does not carry.
const NotInformed = "Não informado"

const previewTextLimit = 200

// Pattern matches a placeholder token.
var Pattern = regexp.MustCompile(`\{\{[A-Za-z0-9_]+\}\}`)

const (
	ClientName        = "{{cliente_nome}}"
	ClientCNPJ        = "{{cliente_cnpj}}"
	ClientAddress     = "{{cliente_endereco}}"
	ClientCity        = "{{cliente_cidade}}"
	ClientState       = "{{cliente_estado}}"
	CaseTitle         = "{{caso_titulo}}"
	CaseType          = "{{caso_tipo}}"
	CaseID            = "{{caso_id}}"
	CaseFacts         = "{{caso_fatos}}"
	CaseThesis        = "{{caso_tese}}"
	CasePrescription  = "{{caso_prescricao}}"
	FapReason         = "{{motivo_fap}}"
	FapStartYear      = "{{ano_inicio_fap}}"
	FapEndYear        = "{{ano_fim_fap}}"
	FapYears          = "{{anos_fap}}"
	FapVigencia       = "{{vigencia_fap}}"
	BenefitTotal      = "{{total_beneficios}}"
	BenefitTotalWords = "{{total_beneficios_extenso}}"
	BenefitList       = "{{lista_beneficios}}"
	BenefitTerm       = "{{termo_beneficio}}"
	AccidentTerm      = "{{termo_acidente}}"
	InsuredName       = "{{segurado_nome}}"
	InsuredNIT        = "{{segurado_nit}}"
	AccidentDate      = "{{data_acidente}}"
	BenefitStartDate  = "{{data_inicio_beneficio}}"
	BenefitEndDate    = "{{data_fim_beneficio}}"
	BenefitNumber     = "{{numero_beneficio}}"
	CATNumber         = "{{numero_cat}}"
	PoliceReport      = "{{numero_bo}}"
	CaseValue         = "{{valor_causa}}"
	CaseValueWords    = "{{valor_causa_extenso}}"
	FilingDate        = "{{data_ajuizamento}}"
	CurrentDate       = "{{data_atual}}"
	CurrentMonthYear  = "{{mes_ano_atual}}"
	CourtName         = "{{vara_nome}}"
	CourtCity         = "{{vara_cidade}}"
	CourtState        = "{{vara_estado}}"
	CourtFull         = "{{vara_completa}}"
	CommutingTitle    = "{{titulo_acidente_trajeto}}"
	ImageCAT          = "{{imagem_cat}}"
	ImageFAP          = "{{imagem_fap}}"
	ImageBeneficiary  = "{{imagem_info_beneficiario}}"
	ImageDeclaration  = "{{imagem_declaracao_beneficio}}"
	ImageINSS         = "{{imagem_beneficiario_inss}}"
	ImageVigencia     = "{{imagem_vigencia_beneficio}}"
)

var imageKeys = []string{ImageCAT, ImageFAP, ImageBeneficiary, ImageDeclaration, ImageINSS, ImageVigencia}

var textKeys = []string{
	ClientName, ClientCNPJ, ClientAddress, ClientCity, ClientState,
	CaseTitle, CaseType, CaseID, CaseFacts, CaseThesis, CasePrescription,
	FapReason, FapStartYear, FapEndYear, FapYears, FapVigencia,
	BenefitTotal, BenefitTotalWords, BenefitList, BenefitTerm, AccidentTerm,
	InsuredName, InsuredNIT, AccidentDate, BenefitStartDate, BenefitEndDate,
	BenefitNumber, CATNumber, PoliceReport,
	CaseValue, CaseValueWords, FilingDate, CurrentDate, CurrentMonthYear,
	CourtName, CourtCity, CourtState, CourtFull, CommutingTitle,
}

// Keys returns every placeholder the resolver produces.
func Keys() []string {
	keys := make([]string, 0, len(textKeys)+len(imageKeys))
	keys = append(keys, textKeys...)
	return append(keys, imageKeys...)
}

// IsImageKey reports whether key is an image sentinel.
func IsImageKey(key string) bool {
	for _, k := range imageKeys {
		if k == key {
			return true
		}
	}
	return false
}

// ImageResolver supplies replacement text for image sentinels. ok=false keeps the sentinel.
type ImageResolver interface {
	ResolveImage(key string, c *models.Case, benefits []models.Benefit) (value string, ok bool)
}

type Resolver struct {
	images ImageResolver
}

type Option func(*Resolver)

func WithImageResolver(r ImageResolver) Option {
	return func(res *Resolver) {
		res.images = r
	}
}

func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps every known key to its value. Missing data yields "". The
// result depends only on its arguments.
func (r *Resolver) Resolve(c *models.Case, benefits []models.Benefit, now time.Time) map[string]string {
	out := make(map[string]string, len(textKeys)+len(imageKeys))
	r.fill(out, c, benefits, now)
	return out
}

// Preview is Resolve with "Não informado" for missing values and long free
// text truncated.
func (r *Resolver) Preview(c *models.Case, benefits []models.Benefit, now time.Time) map[string]string {
	out := r.Resolve(c, benefits, now)
	for k, v := range out {
		switch {
		case strings.TrimSpace(v) == "":
			out[k] = NotInformed
		case k == CaseFacts || k == CaseThesis || k == CasePrescription:
			out[k] = truncate(v, previewTextLimit)
		}
	}
	return out
}

func (r *Resolver) fill(out map[string]string, c *models.Case, benefits []models.Benefit, now time.Time) {
	for _, k := range Keys() {
		out[k] = ""
	}
	if c == nil {
		c = &models.Case{}
	}

	if cl := c.Client; cl != nil {
		out[ClientName] = cl.Name
		out[ClientCNPJ] = cl.CNPJ
		out[ClientAddress] = formatAddress(cl)
		out[ClientCity] = cl.City
		out[ClientState] = cl.State
	}

	out[CaseTitle] = c.Title
	out[CaseType] = c.Type
	if c.ID != 0 {
		out[CaseID] = strconv.FormatInt(c.ID, 10)
	}
	out[CaseFacts] = c.Facts
	out[CaseThesis] = c.Thesis
	out[CasePrescription] = c.Prescription
	out[FapReason] = reasonText(c, benefits)

	if start, end, ok := c.FapYears(); ok {
		out[FapStartYear] = strconv.Itoa(start)
		out[FapEndYear] = strconv.Itoa(end)
		out[FapYears] = FormatYearsRange(start, end)
	}
	out[FapVigencia] = vigenciaText(c, benefits)

	r.fillBenefits(out, benefits)

	if c.Value != nil {
		out[CaseValue] = FormatCurrency(*c.Value)
		out[CaseValueWords] = ValueToWords(*c.Value)
	}
	out[FilingDate] = FormatDate(c.FilingDate)
	out[CurrentDate] = FormatDate(&now)
	out[CurrentMonthYear] = FormatMonthYear(now)

	if ct := c.Court; ct != nil {
		out[CourtName] = ct.Name
		out[CourtCity] = ct.City
		out[CourtState] = ct.State
		out[CourtFull] = formatCourt(ct)
	}

	for _, k := range imageKeys {
		out[k] = k
		if r.images != nil {
			if v, ok := r.images.ResolveImage(k, c, benefits); ok {
				out[k] = v
			}
		}
	}
}

func (r *Resolver) fillBenefits(out map[string]string, benefits []models.Benefit) {
	n := len(benefits)
	out[BenefitTotal] = strconv.Itoa(n)
	out[BenefitTotalWords] = NumberToWords(n)
	out[BenefitTerm] = plural(n, "benefício", "benefícios")
	out[AccidentTerm] = plural(n, "acidente", "acidentes")

	out[CommutingTitle] = plural(n, "Acidente de Trajeto", "Acidentes de Trajeto")

	list := make([]string, 0, n)
	for i := range benefits {
		list = append(list, formatBenefit(&benefits[i]))
	}
	out[BenefitList] = strings.Join(list, "; ")

	if n == 0 {
		return
	}
	// The example insured is the first benefit of the case.
	b := &benefits[0]
	out[InsuredName] = b.InsuredName
	out[InsuredNIT] = b.InsuredNIT
	out[BenefitNumber] = b.BenefitNumber
	out[CATNumber] = b.CATNumber
	out[PoliceReport] = b.PoliceReport
	out[AccidentDate] = FormatDate(b.AccidentDate)
	out[BenefitStartDate] = FormatDate(b.StartDate)
	out[BenefitEndDate] = FormatDate(b.EndDate)
}

// BenefitRow is the benefits table row for the index-th benefit (1-based):
// item, vigência, CNPJ, insured name, NIT, benefit type, benefit number and
// accident date.
func BenefitRow(c *models.Case, index int, b *models.Benefit) []string {
	vigencia := ""
	if start, end, ok := b.VigenciaRange(); ok {
		vigencia = FormatYearsRange(start, end)
	} else if c != nil {
		if start, end, ok := c.FapYears(); ok {
			vigencia = FormatYearsRange(start, end)
		}
	}
	cnpj := ""
	if c != nil && c.Client != nil {
		cnpj = c.Client.CNPJ
	}
	return []string{
		strconv.Itoa(index),
		vigencia,
		cnpj,
		b.InsuredName,
		b.InsuredNIT,
		b.BenefitType,
		b.BenefitNumber,
		FormatDate(b.AccidentDate),
	}
}

func reasonText(c *models.Case, benefits []models.Benefit) string {
	var names []string
	seen := map[string]bool{}
	for i := range benefits {
		r := benefits[i].ClassifiedReason
		if r == nil || r.DisplayName == "" || seen[r.DisplayName] {
			continue
		}
		seen[r.DisplayName] = true
		names = append(names, r.DisplayName)
	}
	if len(names) > 0 {
		return strings.Join(names, "; ")
	}
	if c.FapReason != nil {
		return c.FapReason.DisplayName
	}
	return ""
}

func vigenciaText(c *models.Case, benefits []models.Benefit) string {
	var years []int
	for i := range benefits {
		for _, y := range benefits[i].FapVigenciaYears {
			if year, err := strconv.Atoi(strings.TrimSpace(y)); err == nil {
				years = append(years, year)
			}
		}
	}
	if len(years) > 0 {
		return FormatYears(years)
	}
	if start, end, ok := c.FapYears(); ok {
		return FormatYearsRange(start, end)
	}
	return ""
}

func formatBenefit(b *models.Benefit) string {
	var sb strings.Builder
	sb.WriteString("NB ")
	sb.WriteString(b.BenefitNumber)
	if b.BenefitType != "" {
		sb.WriteString(" (" + b.BenefitType + ")")
	}
	if b.InsuredName != "" {
		sb.WriteString(" - " + b.InsuredName)
	}
	return sb.String()
}

func formatAddress(cl *models.Client) string {
	street := cl.Street
	if cl.Number != "" {
		street = joinNonEmpty(", ", street, cl.Number)
	}
	if cl.Complement != "" {
		street = joinNonEmpty(" - ", street, cl.Complement)
	}
	cityState := joinNonEmpty("/", cl.City, cl.State)
	zip := ""
	if cl.ZipCode != "" {
		zip = "CEP " + cl.ZipCode
	}
	return joinNonEmpty(", ", street, cl.Neighborhood, cityState, zip)
}

func formatCourt(ct *models.Court) string {
	place := joinNonEmpty("/", ct.City, ct.State)
	if ct.Name == "" {
		return place
	}
	if place == "" {
		return ct.Name
	}
	return ct.Name + " de " + place
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
