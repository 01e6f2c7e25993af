package order_test

import (
	"strings"
	"testing"

	"courierhub/internal/core/domain/model/kernel"
	"courierhub/internal/core/domain/model/order"
	"courierhub/internal/pkg/errs"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	size, err := order.ParseSize("medium")
	require.NoError(t, err)
	assert.Equal(t, order.SizeMedium, size)

	dt, err := order.ParseDeliveryType("Express")
	require.NoError(t, err)
	assert.Equal(t, order.DeliveryExpress, dt)

	u, err := order.ParseUrgency("NORMAL")
	require.NoError(t, err)
	assert.Equal(t, order.UrgencyNormal, u)

	_, err = order.ParseSize("huge")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	_, err = order.ParseDeliveryType("overnight")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	_, err = order.ParseUrgency("")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestNewParcel(t *testing.T) {
	p, err := order.NewParcel(order.SizeLarge, "  documents ")
	require.NoError(t, err)
	assert.Equal(t, order.SizeLarge, p.Size())
	assert.Equal(t, "documents", p.Kind())

	_, err = order.NewParcel(order.SizeLarge, strings.Repeat("x", 65))
	require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)

	_, err = order.NewParcel("", "documents")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestNewPlace(t *testing.T) {
	p, err := order.NewPlace(kernel.MustGeoPoint(41.01, 28.97), " Istiklal Cd. 12 ")
	require.NoError(t, err)
	assert.Equal(t, "Istiklal Cd. 12", p.Address())

	_, err = order.NewPlace(kernel.GeoPoint{}, "nowhere")
	require.ErrorIs(t, err, kernel.ErrGeoPointIsNotConstructed)
}

func TestNewFare(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		earning string
		wantErr bool
	}{
		{name: "commission withheld", price: "47.00", earning: "37.60"},
		{name: "no commission", price: "20.00", earning: "20.00"},
		{name: "zero price", price: "0", earning: "0", wantErr: true},
		{name: "negative earning", price: "10", earning: "-1", wantErr: true},
		{name: "earning above price", price: "10", earning: "10.01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := order.NewFare(decimal.MustParse(tt.price), decimal.MustParse(tt.earning))
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrValueIsInvalid)
				return
			}
			require.NoError(t, err)
			require.NoError(t, f.Validate())
			want, err := decimal.MustParse(tt.price).Sub(decimal.MustParse(tt.earning))
			require.NoError(t, err)
			assert.Equal(t, 0, f.Commission().Cmp(want))
		})
	}

	var zero order.Fare
	require.ErrorIs(t, zero.Validate(), order.ErrFareIsNotConstructed)
}

func TestNewTrackingCode(t *testing.T) {
	id := kernel.MustUUIDFromString("550e8400-e29b-41d4-a716-446655440000")
	assert.Equal(t, "CH-550E8400E2", order.NewTrackingCode(id))
}
