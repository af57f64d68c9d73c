package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in     string
		ok     bool
		want   Location
		prefix bool
	}{
		{"s3://payroll-imports/2025/week1.csv", true, Location{"payroll-imports", "2025/week1.csv"}, false},
		{"s3://payroll-imports/2025/", true, Location{"payroll-imports", "2025/"}, true},
		{"s3://payroll-imports", true, Location{"payroll-imports", ""}, true},
		{"s3:///key", false, Location{}, false},
		{"imports/week1.csv", false, Location{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLocation(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.Equal(t, tt.prefix, got.IsPrefix())
			}
		})
	}
}

func TestReadAllLocal(t *testing.T) {
	p := filepath.Join(t.TempDir(), "week1.csv")
	require.NoError(t, os.WriteFile(p, []byte("employeeName,date\n"), 0o600))

	files, err := ReadAll(context.Background(), p, ".csv")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, p, files[0].Name)
	assert.Equal(t, "employeeName,date\n", string(files[0].Data))

	_, err = ReadAll(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), ".csv")
	assert.Error(t, err)
}
