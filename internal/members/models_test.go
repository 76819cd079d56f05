package members

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgeAt(t *testing.T) {
	born := time.Date(2000, time.June, 15, 0, 0, 0, 0, time.UTC)
	beneficiary := &Beneficiary{DateOfBirth: born}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"day before birthday", time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC), 24},
		{"on birthday", time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), 25},
		{"day after birthday", time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC), 25},
		{"end of year", time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), 25},
		{"newborn", time.Date(2000, time.July, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, beneficiary.AgeAt(tt.at))
		})
	}
}
