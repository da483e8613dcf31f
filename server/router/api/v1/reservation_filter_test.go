package v1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReservationFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		want    reservationFilter
		wantErr bool
	}{
		{
			name:   "empty filter",
			filter: "",
			want:   reservationFilter{},
		},
		{
			name:   "status only",
			filter: `status == 'confirmed'`,
			want:   reservationFilter{Status: "confirmed"},
		},
		{
			name:   "reversed comparison",
			filter: `'cancelled' == status`,
			want:   reservationFilter{Status: "cancelled"},
		},
		{
			name:   "conjunction",
			filter: `status == 'confirmed' && service == 'demo'`,
			want:   reservationFilter{Status: "confirmed", ServiceType: "demo"},
		},
		{
			name:   "all fields",
			filter: `status == 'pending' && service == 'consultation' && resource == 'room-a'`,
			want:   reservationFilter{Status: "pending", ServiceType: "consultation", Resource: "room-a"},
		},
		{
			name:    "unknown status",
			filter:  `status == 'done'`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			filter:  `customer == 'jordan'`,
			wantErr: true,
		},
		{
			name:    "unsupported operator",
			filter:  `status != 'confirmed'`,
			wantErr: true,
		},
		{
			name:    "not a comparison",
			filter:  `'confirmed'`,
			wantErr: true,
		},
		{
			name:    "invalid expression",
			filter:  `status ==`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReservationFilter(tt.filter)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, *got)
		})
	}
}
