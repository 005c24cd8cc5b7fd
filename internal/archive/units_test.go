package archive

import (
	"errors"
	"testing"
)

func TestScaleBytes(t *testing.T) {
	t.Run("bytes is the identity", func(t *testing.T) {
		t.Parallel()
		got, err := scaleBytes(123456, "bytes")
		if err != nil {
			t.Fatalf("scaleBytes() error = %v", err)
		}
		if got != 123456 {
			t.Errorf("got %v, want 123456", got)
		}
	})

	t.Run("binary multiples", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			unit string
			want float64
		}{
			{"kB", 1024},
			{"MB", 1},
			{"GB", 1.0 / 1024},
			{"TB", 1.0 / (1024 * 1024)},
		}
		for _, c := range cases {
			got, err := scaleBytes(1<<20, c.unit)
			if err != nil {
				t.Fatalf("scaleBytes(1MiB, %q) error = %v", c.unit, err)
			}
			if got != c.want {
				t.Errorf("scaleBytes(1MiB, %q) = %v, want %v", c.unit, got, c.want)
			}
		}
	})

	t.Run("unknown unit is an invalid argument", func(t *testing.T) {
		t.Parallel()
		_, err := scaleBytes(1, "KiB")
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("got %v, want ErrInvalidArgument", err)
		}
	})
}
