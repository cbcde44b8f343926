package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/medreport/pkg/pdftext"
)

const (
	blockB1 = "HEMOGRAMA COMPLETO\nRESULTADO: Hemoglobina 13.5 g/dL\nVALORES DE REFERENCIA: 12.0 a 16.0"
	blockB2 = "LIPID PANEL\nRESULT: Cholesterol 180 mg/dL\nREFERENCE RANGE: below 200 mg/dL"
)

func TestFindSampleBlock_NoLongBlocks(t *testing.T) {
	text := "SHORT BLOCK 1 mg\fANOTHER ONE 2 g\n\n\nTHIRD 3 %"
	_, found := FindSampleBlock(text)
	assert.False(t, found)

	_, found = FindSampleBlock("")
	assert.False(t, found)
}

func TestFindSampleBlock_FirstMatchWins(t *testing.T) {
	text := blockB1 + "\f" + blockB2
	block, found := FindSampleBlock(text)
	assert.True(t, found)
	assert.Equal(t, blockB1, block)

	block, found = FindSampleBlock(blockB2 + "\n\n\n" + blockB1)
	assert.True(t, found)
	assert.Equal(t, blockB2, block)
}

func TestFindSampleBlock_CleanedBlankLineBoundary(t *testing.T) {
	raw := "Laboratorio Central, unidade 3, atendimento 24h\n  \n\n\t\n\n" + blockB1 + "\n"

	block, found := FindSampleBlock(pdftext.Clean(raw))
	assert.True(t, found)
	assert.Equal(t, blockB1, block)

	// 单个空行不是块边界
	_, found = FindSampleBlock(pdftext.Clean("Laboratorio Central, unidade 3\n\n" + blockB1))
	assert.False(t, found)
}

func TestFindSampleBlock_Signals(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  bool
	}{
		{"qualifies", blockB1, true},
		{"no uppercase title", "Hemograma completo\nRESULTADO: Hemoglobina 13.5 g/dL\nVALORES DE REFERENCIA: 12.0 a 16.0", false},
		{"no reference keyword", "HEMOGRAMA COMPLETO\nRESULTADO: Hemoglobina 13.5 g/dL\nsome trailing text to pass length", false},
		{"value with unit instead of keyword", "URINE ANALYSIS PANEL\nSodium 140 mmol/L measured today ok\nNORMAL range 135 to 145", true},
		{"neither keyword nor unit", "URINE ANALYSIS PANEL\nappearance clear, colour yellow, nothing\nNORMAL appearance", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.GreaterOrEqual(t, len([]rune(tt.block)), minBlockLength)
			_, found := FindSampleBlock(tt.block)
			assert.Equal(t, tt.want, found)
		})
	}
}

func TestFindSampleBlock_SkipsShortThenMatches(t *testing.T) {
	text := "TITLE ONLY\f" + strings.Repeat("x", 60) + "\f" + blockB2
	block, found := FindSampleBlock(text)
	assert.True(t, found)
	assert.Equal(t, blockB2, block)
}
