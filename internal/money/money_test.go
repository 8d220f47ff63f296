package money_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"procure/internal/money"
)

func TestParseRupees(t *testing.T) {
	cases := []struct {
		in      string
		want    money.Paise
		wantErr bool
	}{
		{"95000", 9500000, false},
		{"95000.50", 9500050, false},
		{"0.01", 1, false},
		{"-120.25", -12025, false},
		{"0.001", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := money.ParseRupees(c.in)
		if c.wantErr {
			require.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestStringRoundTrip(t *testing.T) {
	p := money.Paise(12345)
	require.Equal(t, "123.45", p.String())

	back, err := money.ParseRupees(p.String())
	require.NoError(t, err)
	require.Equal(t, p, back)
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(money.Paise(9500000))
	require.NoError(t, err)
	require.Equal(t, `"95000.00"`, string(b))

	var p money.Paise
	require.NoError(t, json.Unmarshal([]byte(`"95000"`), &p))
	require.Equal(t, money.Paise(9500000), p)

	require.NoError(t, json.Unmarshal([]byte(`150.25`), &p))
	require.Equal(t, money.Paise(15025), p)

	require.Error(t, json.Unmarshal([]byte(`"1.005"`), &p))
}

func TestArithmeticIsExact(t *testing.T) {
	// A sum that drifts under float64 stays exact in paise.
	var total money.Paise
	for range 10 {
		p, err := money.ParseRupees("0.10")
		require.NoError(t, err)
		total += p
	}
	require.Equal(t, money.Paise(100), total)
}
