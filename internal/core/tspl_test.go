package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTSPL(t *testing.T) {
	schema := &LabelSchema{
		WidthMM:  50,
		HeightMM: 30.5,
		GapMM:    2,
		Elements: []LabelElement{
			{Type: "text", X: 10, Y: 10, Content: "{{product_name}}"},
			{Type: "barcode", X: 10, Y: 60, Content: "{{barcode}}"},
			{Type: "qrcode", X: 300, Y: 10, Content: "{{default_code}}"},
			{Type: "box", X: 0, Y: 0, XEnd: 400, YEnd: 240, Thickness: 2},
			{Type: "line", X: 0, Y: 50, Width: 400},
		},
	}

	out, err := generateTSPL(schema, map[string]string{
		"product_name": `Widget "Pro"`,
		"barcode":      "4006381333931",
		"default_code": "W-1",
	})
	require.NoError(t, err)

	want := "SIZE 50 mm, 30.5 mm\n" +
		"GAP 2 mm, 0 mm\n" +
		"DIRECTION 0\n" +
		"CLS\n" +
		`TEXT 10,10,"3",0,1,1,"Widget \"Pro\""` + "\n" +
		`BARCODE 10,60,"128",80,0,2,2,2,"4006381333931"` + "\n" +
		`QRCODE 300,10,M,4,0,A,"W-1"` + "\n" +
		"BOX 0,0,400,240,2\n" +
		"BAR 0,50,400,1\n" +
		"PRINT 1\n"
	assert.Equal(t, want, out)
}

func TestGenerateTSPL_Errors(t *testing.T) {
	_, err := generateTSPL(&LabelSchema{Elements: []LabelElement{{Type: "text", Content: "{{nope}}"}}}, map[string]string{})
	assert.ErrorIs(t, err, ErrTemplateFieldMissing)

	_, err = generateTSPL(&LabelSchema{Elements: []LabelElement{{Type: "circle"}}}, map[string]string{})
	assert.ErrorIs(t, err, ErrTemplateMalformed)
}

func TestReferencedFields(t *testing.T) {
	schema := &LabelSchema{Elements: []LabelElement{
		{Content: "{{product_name}} {{price}}"},
		{Content: "{{product_name}}"},
		{Content: "static"},
	}}
	assert.Equal(t, []string{"product_name", "price"}, schema.referencedFields())
}
