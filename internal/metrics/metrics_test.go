package metrics

import "testing"

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		m       Metrics
		wantErr bool
	}{
		{"defaults", Default(), false},
		{"bounds", Metrics{Effort: 1, Attitude: 5}, false},
		{"half step", Metrics{Effort: 3.5, Attitude: 4.5}, false},
		{"below min", Metrics{Effort: 0.5, Attitude: 3}, true},
		{"above max", Metrics{Effort: 3, Attitude: 5.5}, true},
		{"off grid", Metrics{Effort: 3.25, Attitude: 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.m.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}
