package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLikeU = `Santander LikeU,,
Estado de Cuenta,,
,,
FECHA,CONCEPTO,IMPORTE
30/ene/26,OXXO CENTRO,-45.50
02/feb/26,SU PAGO GRACIAS,"5,000.00"
,fila incompleta,
03/feb/26,NETFLIX,-199.00
`

func TestTabularParser_ParseCSV(t *testing.T) {
	p := &TabularParser{}
	rows, err := p.Parse([]byte(sampleLikeU))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "2026-01-30", rows[0].Date)
	assert.Equal(t, "OXXO CENTRO", rows[0].Description)
	assert.Equal(t, "-45.50", rows[0].Amount.StringFixed(2))
	assert.Equal(t, "tabular", rows[0].Source)

	assert.Equal(t, "2026-02-02", rows[1].Date)
	assert.Equal(t, "5000.00", rows[1].Amount.StringFixed(2))

	assert.Equal(t, "2026-02-03", rows[2].Date)
}

func TestTabularParser_NoHeader(t *testing.T) {
	p := &TabularParser{}
	_, err := p.Parse([]byte("a,b,c\n1,2,3\n"))
	assert.Error(t, err)
}

func TestTabularParser_HeaderBeyondScanLimit(t *testing.T) {
	var padded string
	for i := 0; i < headerScanLimit+1; i++ {
		padded += "banner,,\n"
	}
	padded += "FECHA,CONCEPTO,IMPORTE\n30/ene/26,OXXO,-45.50\n"

	p := &TabularParser{}
	_, err := p.Parse([]byte(padded))
	assert.Error(t, err)
}
