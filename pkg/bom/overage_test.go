package bom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epfab/asmtrack/pkg/model"
)

func TestParseOverage(t *testing.T) {
	input := strings.Join([]string{
		"Line,MPN,Description,Buy Quantity",
		"1,GRM188R71C104KA01,Cap,330",
		"2,,blank mpn,10",
		"3,RC0603FR-0710KL,Res,not-a-number",
		"4,CUSTIC-9,IC,5.5",
	}, "\n")

	ov, err := ParseOverage(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, Overage{
		"GRM188R71C104KA01": 330,
		"CUSTIC-9":          5.5,
	}, ov)
}

func TestParseOverageMissingColumns(t *testing.T) {
	_, err := ParseOverage(strings.NewReader("Part,Qty\nX,1\n"))
	assert.Error(t, err)
}

func TestParseOverageEmpty(t *testing.T) {
	ov, err := ParseOverage(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ov)
}

func TestApplyOverages(t *testing.T) {
	lines := []model.BOMLine{
		{Quote: "Q-900", MPN: "GRM188R71C104KA01", RequiredQty: 300},
		{Quote: "Q-900", MPN: "RC0603FR-0710KL", RequiredQty: 12},
		{Quote: "Q-901", MPN: "GRM188R71C104KA01", RequiredQty: 300},
	}
	applied := ApplyOverages(lines, map[string]Overage{
		"Q-900": {"GRM188R71C104KA01": 330},
	})

	assert.Equal(t, 1, applied)
	assert.Equal(t, 330.0, lines[0].RequiredQty)
	assert.Equal(t, 12.0, lines[1].RequiredQty)
	// Same MPN under a different quote is untouched.
	assert.Equal(t, 300.0, lines[2].RequiredQty)
}
