package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func standardSet() *TemplateSet {
	return NewTemplateSet(
		Template{Name: "standard", Label: "Standard",
			Body: "^XA^FO20,20^FD{product_name}^FS^FO20,60^FD{currency_symbol}{price}^FS^FO20,100^BC^FD{barcode}^FS^XZ"},
		Template{Name: "broken", Body: "^XA^FD{weight}^FS^XZ"},
		Template{Name: "tspl", Schema: &LabelSchema{WidthMM: 40, HeightMM: 25, DPI: 203, Elements: []LabelElement{
			{Type: "text", X: 5, Y: 5, Content: "{{product_name}}"},
			{Type: "text", X: 5, Y: 40, Content: "{{currency_symbol}}{{price}}"},
		}}},
	)
}

func TestRender_CopiesAndTruncation(t *testing.T) {
	job := Job{
		ID:          "7",
		ProductName: "WIDGET PRO MAX EXTRA LONG",
		ListPrice:   floatPtr(9.5),
		Quantity:    3,
	}

	commands, err := NewRenderer(standardSet()).Render(job, "standard")
	require.NoError(t, err)
	require.Len(t, commands, 3)

	for _, cmd := range commands {
		assert.Equal(t, commands[0], cmd)
		assert.Contains(t, cmd, "WIDGET PRO MAX EXTRA")
		assert.NotContains(t, cmd, "WIDGET PRO MAX EXTRA ")
		assert.Contains(t, cmd, "9.5")
		assert.Contains(t, cmd, "$")
	}
}

func TestRender_SingleCopyWhenQuantityMissing(t *testing.T) {
	commands, err := NewRenderer(standardSet()).Render(Job{ID: "1", ProductName: "A"}, "standard")
	require.NoError(t, err)
	assert.Len(t, commands, 1)
}

func TestJobFields(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want map[string]any
	}{
		{
			name: "defaults",
			job:  Job{ID: "1"},
			want: map[string]any{
				"product_name": "PRODUCT", "default_code": "", "barcode": "",
				"price": 0.0, "currency_symbol": "$",
			},
		},
		{
			name: "calculated price wins",
			job:  Job{ID: "1", ProductName: "Gadget", ListPrice: floatPtr(5), CalculatedPrice: floatPtr(4.5), CurrencySymbol: "€"},
			want: map[string]any{
				"product_name": "Gadget", "default_code": "", "barcode": "",
				"price": 4.5, "currency_symbol": "€",
			},
		},
		{
			name: "truncates by rune",
			job:  Job{ID: "1", ProductName: "ÄÖÜÄÖÜÄÖÜÄÖÜÄÖÜÄÖÜÄÖÜ"},
			want: map[string]any{
				"product_name": "ÄÖÜÄÖÜÄÖÜÄÖÜÄÖÜÄÖÜÄÖ", "default_code": "", "barcode": "",
				"price": 0.0, "currency_symbol": "$",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JobFields(tt.job))
		})
	}
}

func TestRender_Errors(t *testing.T) {
	job := Job{ID: "1", ProductName: "A", Quantity: 2}

	_, err := NewRenderer(NewTemplateSet()).Render(job, "standard")
	assert.ErrorIs(t, err, ErrEmptyTemplateStore)

	_, err = NewRenderer(standardSet()).Render(job, "compact")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	commands, err := NewRenderer(standardSet()).Render(job, "broken")
	assert.ErrorIs(t, err, ErrTemplateFieldMissing)
	assert.Nil(t, commands)
}

func TestRender_CopyLimit(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		wantErr  error
		want     int
	}{
		{name: "at limit", quantity: MaxCopies, want: MaxCopies},
		{name: "one over", quantity: MaxCopies + 1, wantErr: ErrQuantityTooLarge},
		{name: "huge", quantity: 100000000, wantErr: ErrQuantityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commands, err := NewRenderer(standardSet()).Render(Job{ID: "1", ProductName: "A", Quantity: tt.quantity}, "standard")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, commands)
				return
			}
			require.NoError(t, err)
			assert.Len(t, commands, tt.want)
		})
	}
}

func TestRender_Schema(t *testing.T) {
	commands, err := NewRenderer(standardSet()).Render(Job{ID: "1", ProductName: "Nut", ListPrice: floatPtr(10), Quantity: 2}, "tspl")
	require.NoError(t, err)
	require.Len(t, commands, 2)
	assert.True(t, strings.HasPrefix(commands[0], "SIZE 40 mm, 25 mm\n"))
	assert.Contains(t, commands[0], `TEXT 5,5,"3",0,1,1,"Nut"`)
	assert.Contains(t, commands[0], `TEXT 5,40,"3",0,1,1,"$10.0"`)
}
