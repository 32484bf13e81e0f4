package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileEmpty(t *testing.T) {
	f, err := Compile("   ")
	require.NoError(t, err)
	assert.Nil(t, f)

	matched, err := f.Match(map[string]string{"status": "failed"})
	require.NoError(t, err)
	assert.True(t, matched, "nil filter matches everything")
	assert.Empty(t, f.String())
}

func TestMatch(t *testing.T) {
	row := map[string]string{
		"stripe_charge_id": "ch_1",
		"status":           "succeeded",
		"currency":         "usd",
		"amount":           "1500",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`row.status == "succeeded"`, true},
		{`row.status != "succeeded"`, false},
		{`row.currency in ["usd", "eur"] && row.amount != "0"`, true},
		{`row["stripe_charge_id"].startsWith("py_")`, false},
		{`has(row.refunded) && row.refunded == "true"`, false},
		{`int(row.amount) >= 1000`, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, f.String())

			got, err := f.Match(row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":      `row.status ==`,
		"unknown var": `record.status == "x"`,
		"not a bool":  `row.status`,
		"wrong types": `row.amount > 10`,
	}

	for name, expr := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(expr)
			assert.Error(t, err)
		})
	}
}

func TestMatchMissingColumn(t *testing.T) {
	f, err := Compile(`row.status == "succeeded"`)
	require.NoError(t, err)

	_, err = f.Match(map[string]string{"stripe_charge_id": "ch_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row.status")
}
