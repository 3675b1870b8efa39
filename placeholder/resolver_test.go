package placeholder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fapdraft-backend/models"
)

func ptr[T any](v T) *T { return &v }

var now = time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)

func sampleCase() *models.Case {
	return &models.Case{
		ID:           42,
		Title:        "Revisão FAP 2019-2021",
		Type:         "Revisional",
		Value:        ptr(1234567.89),
		FapStartYear: ptr(2019),
		FapEndYear:   ptr(2021),
		Facts:        "Fatos do caso",
		Client: &models.Client{
			Name: "ACME Ltda", CNPJ: "00.000.000/0001-00",
			Street: "Rua A", Number: "10", City: "Campinas", State: "SP", ZipCode: "13000-000",
		},
		Court: &models.Court{Name: "1ª Vara Federal", City: "Campinas", State: "SP"},
	}
}

type stubImages struct{}

func (stubImages) ResolveImage(key string, _ *models.Case, _ []models.Benefit) (string, bool) {
	if key == ImageCAT {
		return "[CAT anexa]", true
	}
	return "", false
}

func TestResolve(t *testing.T) {
	r := New()

	t.Run("should produce every key for any input", func(t *testing.T) {
		for _, c := range []*models.Case{nil, {}, sampleCase()} {
			out := r.Resolve(c, nil, now)
			for _, k := range Keys() {
				_, ok := out[k]
				assert.True(t, ok, "missing %s", k)
			}
		}
	})

	t.Run("should be deterministic", func(t *testing.T) {
		benefits := []models.Benefit{{BenefitNumber: "1"}, {BenefitNumber: "2"}}
		assert.Equal(t, r.Resolve(sampleCase(), benefits, now), r.Resolve(sampleCase(), benefits, now))
	})

	t.Run("should format values and the FAP range", func(t *testing.T) {
		out := r.Resolve(sampleCase(), nil, now)
		assert.Equal(t, "R$ 1.234.567,89", out[CaseValue])
		assert.Equal(t, out[CaseValue], out[CaseValueWords])
		assert.Equal(t, "2019 a 2021", out[FapYears])
		assert.Equal(t, "2019", out[FapStartYear])
		assert.Equal(t, "42", out[CaseID])
		assert.Equal(t, "18/10/2026", out[CurrentDate])
		assert.Equal(t, "outubro de 2026", out[CurrentMonthYear])
		assert.Equal(t, "1ª Vara Federal de Campinas/SP", out[CourtFull])
		assert.Equal(t, "Rua A, 10, Campinas/SP, CEP 13000-000", out[ClientAddress])
	})

	t.Run("should render a single FAP year alone", func(t *testing.T) {
		c := sampleCase()
		c.FapEndYear = ptr(2019)
		assert.Equal(t, "2019", r.Resolve(c, nil, now)[FapYears])
	})

	t.Run("should count benefits in words and toggle plurals", func(t *testing.T) {
		benefits := make([]models.Benefit, 5)
		for i := range benefits {
			benefits[i].BenefitNumber = string(rune('1' + i))
		}

		out := r.Resolve(sampleCase(), benefits, now)
		assert.Equal(t, "5", out[BenefitTotal])
		assert.Equal(t, "cinco", out[BenefitTotalWords])
		assert.Equal(t, "benefícios", out[BenefitTerm])
		assert.Equal(t, "Acidentes de Trajeto", out[CommutingTitle])

		one := r.Resolve(sampleCase(), benefits[:1], now)
		assert.Equal(t, "benefício", one[BenefitTerm])
		assert.Equal(t, "Acidente de Trajeto", one[CommutingTitle])
	})

	t.Run("should take the example insured from the first benefit", func(t *testing.T) {
		accident := time.Date(2019, time.August, 15, 0, 0, 0, 0, time.UTC)
		start := time.Date(2019, time.August, 16, 0, 0, 0, 0, time.UTC)
		end := time.Date(2019, time.December, 1, 0, 0, 0, 0, time.UTC)
		other := time.Date(2020, time.March, 2, 0, 0, 0, 0, time.UTC)
		benefits := []models.Benefit{
			{
				BenefitNumber: "111", InsuredName: "José da Silva", InsuredNIT: "123.45678.90-1",
				CATNumber: "CAT-1", PoliceReport: "BO-1",
				AccidentDate: &accident, StartDate: &start, EndDate: &end,
			},
			{
				BenefitNumber: "222", InsuredName: "Maria Santos", InsuredNIT: "987.65432.10-9",
				CATNumber: "CAT-2", PoliceReport: "BO-2",
				AccidentDate: &other, StartDate: &other, EndDate: &other,
			},
		}

		out := r.Resolve(sampleCase(), benefits, now)
		assert.Equal(t, "José da Silva", out[InsuredName])
		assert.Equal(t, "123.45678.90-1", out[InsuredNIT])
		assert.Equal(t, "111", out[BenefitNumber])
		assert.Equal(t, "CAT-1", out[CATNumber])
		assert.Equal(t, "BO-1", out[PoliceReport])
		assert.Equal(t, "15/08/2019", out[AccidentDate])
		assert.Equal(t, "16/08/2019", out[BenefitStartDate])
		assert.Equal(t, "01/12/2019", out[BenefitEndDate])
		assert.Contains(t, out[BenefitList], "José da Silva")
		assert.Contains(t, out[BenefitList], "Maria Santos")
	})

	t.Run("should leave missing fields empty", func(t *testing.T) {
		out := r.Resolve(&models.Case{}, nil, now)
		assert.Equal(t, "", out[CaseValue])
		assert.Equal(t, "", out[ClientName])
		assert.Equal(t, "0", out[BenefitTotal])
		assert.Equal(t, "zero", out[BenefitTotalWords])
	})

	t.Run("should prefer benefit level reasons over the case level one", func(t *testing.T) {
		c := sampleCase()
		c.FapReason = &models.FapReason{DisplayName: "Legado"}
		benefits := []models.Benefit{
			{ClassifiedReason: &models.FapReason{DisplayName: "Acidente de trajeto"}},
			{ClassifiedReason: &models.FapReason{DisplayName: "Acidente de trajeto"}},
		}
		assert.Equal(t, "Acidente de trajeto", r.Resolve(c, benefits, now)[FapReason])
		assert.Equal(t, "Legado", r.Resolve(c, nil, now)[FapReason])
	})

	t.Run("should compute vigência from benefits", func(t *testing.T) {
		benefits := []models.Benefit{
			{FapVigenciaYears: models.Years{"2019"}},
			{FapVigenciaYears: models.Years{"2021"}},
		}
		assert.Equal(t, "2019 e 2021", r.Resolve(sampleCase(), benefits, now)[FapVigencia])
		assert.Equal(t, "2019 a 2021", r.Resolve(sampleCase(), nil, now)[FapVigencia])
	})

	t.Run("should keep image sentinels unless a resolver supplies them", func(t *testing.T) {
		out := r.Resolve(sampleCase(), nil, now)
		assert.Equal(t, ImageFAP, out[ImageFAP])

		out = New(WithImageResolver(stubImages{})).Resolve(sampleCase(), nil, now)
		assert.Equal(t, "[CAT anexa]", out[ImageCAT])
		assert.Equal(t, ImageFAP, out[ImageFAP])
	})
}

func TestPreview(t *testing.T) {
	r := New()

	t.Run("should mark missing values as not informed", func(t *testing.T) {
		out := r.Preview(&models.Case{}, nil, now)
		assert.Equal(t, NotInformed, out[CaseValue])
		assert.Equal(t, NotInformed, out[ClientName])
	})

	t.Run("should truncate long free text", func(t *testing.T) {
		c := sampleCase()
		long := make([]rune, 500)
		for i := range long {
			long[i] = 'a'
		}
		c.Facts = string(long)
		out := r.Preview(c, nil, now)
		assert.Len(t, []rune(out[CaseFacts]), previewTextLimit+3)
		assert.Equal(t, "...", out[CaseFacts][len(out[CaseFacts])-3:])
	})
}

func TestBenefitRow(t *testing.T) {
	t.Run("should fall back to the case range for vigência", func(t *testing.T) {
		d := time.Date(2020, time.May, 2, 0, 0, 0, 0, time.UTC)
		row := BenefitRow(sampleCase(), 3, &models.Benefit{BenefitNumber: "123", InsuredName: "João", AccidentDate: &d})
		assert.Equal(t, []string{"3", "2019 a 2021", "00.000.000/0001-00", "João", "", "", "123", "02/05/2020"}, row)
	})

	t.Run("should prefer the benefit vigência years", func(t *testing.T) {
		row := BenefitRow(sampleCase(), 1, &models.Benefit{FapVigenciaYears: models.Years{"2021", "2020"}})
		assert.Equal(t, "2020 a 2021", row[1])
	})
}
