package placeholder

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var units = [...]string{
	"zero", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove",
	"dez", "onze", "doze", "treze", "quatorze", "quinze", "dezesseis", "dezessete", "dezoito", "dezenove",
}

var tens = [...]string{"", "", "vinte", "trinta", "quarenta", "cinquenta", "sessenta", "setenta", "oitenta", "noventa"}

var months = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// NumberToWords spells n in Brazilian Portuguese for 0..100 and falls back
// to digits outside that range.
func NumberToWords(n int) string {
	switch {
	case n < 0 || n > 100:
		return strconv.Itoa(n)
	case n == 100:
		return "cem"
	case n < 20:
		return units[n]
	case n%10 == 0:
		return tens[n/10]
	default:
		return tens[n/10] + " e " + units[n%10]
	}
}

// FormatCurrency renders v as "R$ 1.234,56".
func FormatCurrency(v float64) string {
	cents := int64(math.Round(math.Abs(v) * 100))
	intPart := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if v < 0 && cents > 0 {
		sign = "-"
	}
	frac := cents % 100
	return sign + "R$ " + b.String() + "," + twoDigits(int(frac))
}

// ValueToWords is the textual rendering of a monetary value. It mirrors the
// numeric currency string.
func ValueToWords(v float64) string {
	return FormatCurrency(v)
}

// FormatYearsRange renders an inclusive year range, a single year alone.
func FormatYearsRange(start, end int) string {
	if start > end {
		start, end = end, start
	}
	if start == end {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + " a " + strconv.Itoa(end)
}

// FormatYears renders a set of years: consecutive sets become a span, other
// sets an enumeration ("2018, 2020 e 2021").
func FormatYears(years []int) string {
	if len(years) == 0 {
		return ""
	}
	uniq := make([]int, 0, len(years))
	seen := make(map[int]bool, len(years))
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			uniq = append(uniq, y)
		}
	}
	sort.Ints(uniq)

	if uniq[len(uniq)-1]-uniq[0] == len(uniq)-1 {
		return FormatYearsRange(uniq[0], uniq[len(uniq)-1])
	}
	parts := make([]string, len(uniq))
	for i, y := range uniq {
		parts[i] = strconv.Itoa(y)
	}
	return joinPortuguese(parts)
}

// FormatDate renders t as dd/mm/yyyy, empty for nil.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// FormatMonthYear renders t as "outubro de 2026".
func FormatMonthYear(t time.Time) string {
	return months[t.Month()-1] + " de " + strconv.Itoa(t.Year())
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func joinPortuguese(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " e " + parts[len(parts)-1]
	}
}
